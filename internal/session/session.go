// Package session is the single source of truth for "who is logged in".
// The user record is never trusted across a token change: every swap goes
// through revalidation against the backend.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"parahub/client-go/internal/model"
	"parahub/client-go/internal/prefs"
)

// ErrNotAuthenticated is returned by Revalidate when no token is held.
var ErrNotAuthenticated = errors.New("not authenticated")

// UserFetcher is the narrow backend surface the session needs.
type UserFetcher interface {
	Me(ctx context.Context, token string) (model.User, error)
}

// Provider is the capability surface handed to components that need session
// state. Implementations must uphold: a null token implies a null user.
type Provider interface {
	CurrentUser() *model.User
	Token() string
	Login(ctx context.Context, token string) error
	Logout() error
	Revalidate(ctx context.Context) error
}

// Manager implements Provider on top of the durable prefs store.
type Manager struct {
	log   zerolog.Logger
	store *prefs.Store
	fetch UserFetcher

	mu    sync.RWMutex
	token string
	user  *model.User
}

// New builds a Manager, restoring any persisted token. The user is always
// re-derived via Revalidate, never read from storage. fetch may be nil at
// construction and supplied later with SetFetcher.
func New(log zerolog.Logger, store *prefs.Store, fetch UserFetcher) *Manager {
	m := &Manager{log: log, store: store, fetch: fetch}
	if tok, err := store.Get(prefs.KeyToken); err == nil {
		m.token = tok
	}
	return m
}

// SetFetcher wires the backend after construction. The Manager supplies the
// API client's tokens while the client supplies the Manager's user lookups,
// so one of the two has to be attached late.
func (m *Manager) SetFetcher(fetch UserFetcher) {
	m.mu.Lock()
	m.fetch = fetch
	m.mu.Unlock()
}

// CurrentUser returns the validated user, or nil when logged out or not yet
// revalidated.
func (m *Manager) CurrentUser() *model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Token returns the held bearer token, "" when logged out. Satisfies
// api.TokenSource.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Login persists the token and revalidates. The token swap alone is what
// triggers revalidation; the previous user is dropped immediately so stale
// identity is never visible while the check is in flight.
func (m *Manager) Login(ctx context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.user = nil
	m.mu.Unlock()

	if err := m.store.Set(prefs.KeyToken, token); err != nil {
		m.log.Error().Err(err).Msg("failed to persist session token")
	}

	return m.Revalidate(ctx)
}

// Logout clears both the persisted and in-memory token and user.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.mu.Unlock()

	if err := m.store.Delete(prefs.KeyToken); err != nil {
		return fmt.Errorf("clear persisted token: %w", err)
	}
	return nil
}

// Revalidate re-fetches the user record for the held token. Any failure,
// including an expired or rejected token, coerces the session to logged-out;
// there is no client-side retry or refresh rotation.
func (m *Manager) Revalidate(ctx context.Context) error {
	tok := m.Token()
	if tok == "" {
		m.mu.Lock()
		m.user = nil
		m.mu.Unlock()
		return ErrNotAuthenticated
	}

	if expired(tok) {
		m.log.Info().Msg("session token expired, logging out")
		if err := m.Logout(); err != nil {
			return err
		}
		return ErrNotAuthenticated
	}

	m.mu.RLock()
	fetch := m.fetch
	m.mu.RUnlock()
	if fetch == nil {
		return errors.New("no user fetcher attached")
	}

	user, err := fetch.Me(ctx, tok)
	if err != nil {
		m.log.Warn().Err(err).Msg("session revalidation failed, logging out")
		if lerr := m.Logout(); lerr != nil {
			return lerr
		}
		return fmt.Errorf("revalidate session: %w", err)
	}

	m.mu.Lock()
	// The token may have been swapped while the fetch was in flight; only
	// accept the user if it still matches the token we checked.
	if m.token == tok {
		m.user = &user
	}
	m.mu.Unlock()
	return nil
}

// expired inspects the JWT expiry claim without verifying the signature.
// Verification is the backend's job; this only short-circuits a check that is
// guaranteed to fail. Tokens that do not parse are left for the backend.
func expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
