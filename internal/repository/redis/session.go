package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/utafrali/winestore/pkg/errors"
)

const keyPrefix = "session:"

// SessionStore implements repository.SessionStore using Redis. Every value
// of a session lives under "session:<id>:<key>".
type SessionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewSessionStore creates a Redis-backed session store. A zero ttl keeps
// values until they are deleted.
func NewSessionStore(client redis.UniversalClient, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
	}
}

func sessionKey(sessionID, key string) string {
	return keyPrefix + sessionID + ":" + key
}

// Get reads key from the session namespace.
func (s *SessionStore) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound(key, sessionID)
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Set writes key in the session namespace and refreshes its TTL.
func (s *SessionStore) Set(ctx context.Context, sessionID, key string, value []byte) error {
	if err := s.client.Set(ctx, sessionKey(sessionID, key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
