package identity

import (
	"context"
	"sync"
)

// MemoryStore is an in-process store. Used by tests and by cartctl, where a
// persisted identifier would outlive the invocation anyway.
type MemoryStore struct {
	mu  sync.Mutex
	id  string
	set bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(ctx context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.set, nil
}

func (s *MemoryStore) Set(ctx context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = cartID
	s.set = true
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
	s.set = false
	return nil
}
