// Package auth holds the bearer token managed by the external auth
// collaborator. The guest chat subsystem only reads it for header injection
// and drops it when the server rejects it.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/telamed/guestchat/internal/domain"
)

const tokenKey = "auth_token"

// nowFunc is swapped out in tests.
var nowFunc = time.Now

// TokenStore reads and writes the persisted bearer token.
type TokenStore struct {
	store domain.KeyValueStore
	log   zerolog.Logger
}

// NewTokenStore creates a token store over the local persistence adapter.
func NewTokenStore(store domain.KeyValueStore, logger zerolog.Logger) *TokenStore {
	return &TokenStore{store: store, log: logger}
}

// Token returns the stored bearer token, or "" when none is usable. JWT
// tokens with an exp claim in the past are discarded instead of being
// replayed; opaque tokens pass through untouched.
func (s *TokenStore) Token(ctx context.Context) string {
	raw, err := s.store.Get(ctx, tokenKey)
	if err != nil {
		return ""
	}

	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return raw // not a JWT, use as-is
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return raw
	}
	if exp.Before(nowFunc()) {
		s.log.Debug().Msg("stored auth token expired, discarding")
		s.Invalidate(ctx)
		return ""
	}
	return raw
}

// Set persists a new bearer token.
func (s *TokenStore) Set(ctx context.Context, token string) error {
	if err := s.store.Set(ctx, tokenKey, token); err != nil {
		return fmt.Errorf("failed to persist auth token: %w", err)
	}
	return nil
}

// Invalidate removes the stored token. Called by the gateway on 401/403.
func (s *TokenStore) Invalidate(ctx context.Context) {
	if err := s.store.Delete(ctx, tokenKey); err != nil {
		s.log.Error().Err(err).Msg("failed to clear auth token")
	}
}
