package routeguard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"parahub/client-go/internal/model"
)

func TestDecide(t *testing.T) {
	admin := &model.User{ID: 1, Role: model.RoleAdmin}
	user := &model.User{ID: 2, Role: model.RoleUser}

	tests := []struct {
		name       string
		user       *model.User
		req        Requirement
		want       Decision
		wantReason bool
	}{
		{"open route, anonymous", nil, RequireNone, Allow, false},
		{"open route, user", user, RequireNone, Allow, false},
		{"protected route, anonymous", nil, RequireUser, RedirectLogin, true},
		{"protected route, user", user, RequireUser, Allow, false},
		{"admin route, anonymous", nil, RequireAdmin, RedirectLogin, true},
		{"admin route, plain user", user, RequireAdmin, RedirectHome, false},
		{"admin route, admin", admin, RequireAdmin, Allow, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, reason := Decide(tc.user, tc.req)
			if got != tc.want {
				t.Fatalf("Decide = %v, want %v", got, tc.want)
			}
			if tc.wantReason && reason == "" {
				t.Fatalf("expected a login reason")
			}
			if !tc.wantReason && reason != "" {
				t.Fatalf("unexpected reason %q", reason)
			}
		})
	}
}

type staticSession struct{ user *model.User }

func (s staticSession) CurrentUser() *model.User { return s.user }

func TestMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("anonymous is redirected to login with reason", func(t *testing.T) {
		h := Middleware(staticSession{}, RequireUser)(next)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/map", nil))

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["redirect"] != "/login" || body["reason"] == "" {
			t.Fatalf("unexpected redirect payload: %v", body)
		}
	})

	t.Run("under-privileged user is sent home", func(t *testing.T) {
		h := Middleware(staticSession{user: &model.User{Role: model.RoleUser}}, RequireAdmin)(next)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin", nil))

		if rr.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rr.Code)
		}
		var body map[string]string
		_ = json.Unmarshal(rr.Body.Bytes(), &body)
		if body["redirect"] != "/" {
			t.Fatalf("expected redirect home, got %v", body)
		}
	})

	t.Run("authorized passes through", func(t *testing.T) {
		h := Middleware(staticSession{user: &model.User{Role: model.RoleAdmin}}, RequireAdmin)(next)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})
}
