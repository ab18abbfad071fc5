package session

import (
	"context"
	"sync"

	"github.com/hupe1980/agentrun/item"
)

// Compile-time interface check.
var _ Store = (*InMemoryStore)(nil)

// InMemoryStore is a volatile Store keeping histories in a process local
// map. It is safe for concurrent access and best suited for tests or
// ephemeral demos. Returned slices are copies, so callers cannot mutate
// internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]item.Item
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]item.Item)}
}

// Items implements the Store interface.
func (s *InMemoryStore) Items(_ context.Context, sessionID string) ([]item.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.sessions[sessionID]
	out := make([]item.Item, len(stored))
	copy(out, stored)

	return out, nil
}

// Append implements the Store interface.
func (s *InMemoryStore) Append(_ context.Context, sessionID string, items []item.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = append(s.sessions[sessionID], items...)

	return nil
}

// Clear implements the Store interface.
func (s *InMemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)

	return nil
}
