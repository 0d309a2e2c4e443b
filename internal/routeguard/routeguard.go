// Package routeguard decides whether a navigation may proceed given the
// current session. The decision function is pure; the middleware adapts it
// to the gateway.
package routeguard

import (
	"encoding/json"
	"net/http"

	"parahub/client-go/internal/model"
)

// Requirement is a route's declared minimum access level.
type Requirement int

const (
	// RequireNone renders for everyone.
	RequireNone Requirement = iota
	// RequireUser renders for any authenticated user.
	RequireUser
	// RequireAdmin renders only for administrators.
	RequireAdmin
)

// Decision is the outcome of a guard check.
type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectHome
)

// LoginReason is the human-readable message carried to the login page when
// an anonymous visitor hits a protected route.
const LoginReason = "The map is available to signed-in users only."

// Decide maps (session user, requirement) to a navigation outcome. An
// anonymous visitor on a protected route is sent to login with a reason; an
// authenticated user lacking the required role is sent home.
func Decide(user *model.User, req Requirement) (Decision, string) {
	if req == RequireNone {
		return Allow, ""
	}
	if user == nil {
		return RedirectLogin, LoginReason
	}
	if req == RequireAdmin && user.Role != model.RoleAdmin {
		return RedirectHome, ""
	}
	return Allow, ""
}

// SessionReader is the slice of the session the guard needs.
type SessionReader interface {
	CurrentUser() *model.User
}

// Middleware enforces a requirement on a route subtree. Redirects are
// expressed as JSON so the hosting page can navigate.
func Middleware(s SessionReader, req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, reason := Decide(s.CurrentUser(), req)
			switch decision {
			case Allow:
				next.ServeHTTP(w, r)
			case RedirectLogin:
				writeRedirect(w, http.StatusUnauthorized, "/login", reason)
			case RedirectHome:
				writeRedirect(w, http.StatusForbidden, "/", "")
			}
		})
	}
}

func writeRedirect(w http.ResponseWriter, status int, to, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]string{"redirect": to}
	if reason != "" {
		body["reason"] = reason
	}
	_ = json.NewEncoder(w).Encode(body)
}
