// Package session keeps the authenticated user's credential and profile
// snapshot. The token is an opaque bearer credential issued elsewhere; it is
// forwarded as-is and never refreshed here.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lorenzolpandolfo/agenda/internal/availability"
)

// ErrNotAuthenticated is returned when a token is requested and no session
// is active.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// StaticToken is a TokenProvider for a fixed credential, handy in tests and
// one-shot CLI calls.
type StaticToken string

func (t StaticToken) Token(ctx context.Context) (string, error) {
	if t == "" {
		return "", ErrNotAuthenticated
	}
	return string(t), nil
}

// Store holds the current session. It replaces the ambient auth singleton of
// the mobile app: consumers receive a *Store explicitly and nothing reaches
// for global state.
type Store struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	userID       uuid.UUID
	user         *availability.User
}

// NewStore returns an empty, logged-out store.
func NewStore() *Store {
	return &Store{}
}

// SetAuthData installs the credentials returned by a successful login.
func (s *Store) SetAuthData(accessToken, refreshToken string, userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = accessToken
	s.refreshToken = refreshToken
	s.userID = userID
}

// SetUser stores the authenticated user's profile snapshot.
func (s *Store) SetUser(u *availability.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

// Token implements apiclient.TokenProvider.
func (s *Store) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.accessToken == "" {
		return "", ErrNotAuthenticated
	}
	return s.accessToken, nil
}

// UserID returns the authenticated user's id, or uuid.Nil when logged out.
func (s *Store) UserID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// User returns the profile snapshot, or nil when none was stored.
func (s *Store) User() *availability.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Authenticated reports whether a credential is present.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken != "" && s.userID != uuid.Nil
}

// Logout drops all session state. Called when the service reports the
// credential expired.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.refreshToken = ""
	s.userID = uuid.Nil
	s.user = nil
}

// Claims is the subset of token claims useful for display. Extracted without
// signature verification: the service is the only party that verifies.
type Claims struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// InspectToken decodes the claims of a bearer token without verifying it.
func InspectToken(token string) (Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Claims{}, errors.New("session: malformed token")
	}

	var out Claims
	if sub, ok := claims["subject"].(map[string]interface{}); ok {
		if raw, ok := sub["user_id"].(string); ok {
			if id, err := uuid.Parse(raw); err == nil {
				out.UserID = id
			}
		}
	}
	if raw, ok := claims["user_id"].(string); ok && out.UserID == uuid.Nil {
		if id, err := uuid.Parse(raw); err == nil {
			out.UserID = id
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}
