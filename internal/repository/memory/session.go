// Package memory provides a process-local session store for development and
// tests. Values do not survive a restart.
package memory

import (
	"context"
	"sync"

	apperrors "github.com/utafrali/winestore/pkg/errors"
)

// SessionStore implements repository.SessionStore with a map.
type SessionStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{data: make(map[string]map[string][]byte)}
}

func (s *SessionStore) Get(_ context.Context, sessionID, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[sessionID][key]
	if !ok {
		return nil, apperrors.NotFound(key, sessionID)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *SessionStore) Set(_ context.Context, sessionID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.data[sessionID]
	if !ok {
		ns = make(map[string][]byte)
		s.data[sessionID] = ns
	}
	v := make([]byte, len(value))
	copy(v, value)
	ns[key] = v
	return nil
}
