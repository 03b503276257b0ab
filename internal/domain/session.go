package domain

import (
	"context"
	"time"
)

// GuestSession is the anonymous, server-issued identity that scopes a set
// of chats before the user registers. The session id is opaque and never
// mutated; a rejected id is discarded and a fresh session created.
type GuestSession struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// KeyValueStore is the local persistence adapter: a single-key string store
// holding the guest session id and the bearer auth token.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
