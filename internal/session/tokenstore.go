// ABOUTME: Durable bearer token storage on top of the console profile
// ABOUTME: Primary auth_token cookie with a read-only legacy local storage fallback

package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/2389/coven-console/internal/store"
)

const (
	// CookieName is the primary cookie holding the bearer token.
	CookieName = "auth_token"

	// CookiePath scopes the cookie to the whole console.
	CookiePath = "/"

	// LegacyKey is the deprecated local storage key read for older sessions.
	LegacyKey = "token"

	// TokenTTLDays is the fixed lifetime of the token cookie.
	TokenTTLDays = 7
)

// TokenStore persists the bearer token. All operations are synchronous and
// never fail: an unavailable profile behaves like an empty one.
type TokenStore struct {
	profile store.ProfileStore
	now     func() time.Time
	logger  *slog.Logger
}

// TokenStoreOption configures a TokenStore.
type TokenStoreOption func(*TokenStore)

// WithClock overrides the time source used for cookie expiry.
func WithClock(now func() time.Time) TokenStoreOption {
	return func(s *TokenStore) {
		s.now = now
	}
}

// NewTokenStore creates a token store backed by the given profile.
func NewTokenStore(profile store.ProfileStore, opts ...TokenStoreOption) *TokenStore {
	s := &TokenStore{
		profile: profile,
		now:     time.Now,
		logger:  slog.Default().With("component", "tokenstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save writes the token cookie with the given lifetime.
func (s *TokenStore) Save(token string, ttlDays int) {
	now := s.now()
	err := s.profile.SetCookie(context.Background(), &store.Cookie{
		Name:      CookieName,
		Value:     token,
		Path:      CookiePath,
		ExpiresAt: now.Add(time.Duration(ttlDays) * 24 * time.Hour),
		CreatedAt: now,
	})
	if err != nil {
		s.logger.Warn("failed to persist session token", "error", err)
	}
}

// Read returns the stored token. The cookie wins; the legacy entry is only
// consulted when there is no usable cookie.
func (s *TokenStore) Read() (string, bool) {
	ctx := context.Background()

	cookie, err := s.profile.GetCookie(ctx, CookieName)
	switch {
	case err == nil && cookie.Expired(s.now()):
		if err := s.profile.DeleteCookie(ctx, CookieName); err != nil {
			s.logger.Warn("failed to drop expired session cookie", "error", err)
		}
	case err == nil && cookie.Value != "":
		return cookie.Value, true
	case err != nil && !errors.Is(err, store.ErrNotFound):
		s.logger.Warn("session storage unavailable", "error", err)
		return "", false
	}

	legacy, err := s.profile.GetItem(ctx, LegacyKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("legacy session storage unavailable", "error", err)
		}
		return "", false
	}
	if legacy == "" {
		return "", false
	}
	return legacy, true
}

// Clear removes the token from both locations.
func (s *TokenStore) Clear() {
	ctx := context.Background()
	if err := s.profile.DeleteCookie(ctx, CookieName); err != nil {
		s.logger.Warn("failed to clear session cookie", "error", err)
	}
	if err := s.profile.RemoveItem(ctx, LegacyKey); err != nil {
		s.logger.Warn("failed to clear legacy session token", "error", err)
	}
}
