package repository

import (
	"context"

	"github.com/utafrali/winestore/internal/cart"
)

// SessionStore persists opaque values under a per-session namespace.
// Get returns an error wrapping apperrors.ErrNotFound for a missing key.
type SessionStore interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, error)
	Set(ctx context.Context, sessionID, key string, value []byte) error
}

// Scope binds a SessionStore to one session so it can back a cart.
func Scope(store SessionStore, sessionID string) cart.KV {
	return scoped{store: store, sessionID: sessionID}
}

type scoped struct {
	store     SessionStore
	sessionID string
}

func (s scoped) Get(ctx context.Context, key string) ([]byte, error) {
	return s.store.Get(ctx, s.sessionID, key)
}

func (s scoped) Set(ctx context.Context, key string, value []byte) error {
	return s.store.Set(ctx, s.sessionID, key, value)
}
