package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the identifier in process memory. Nothing survives a
// restart, so Reconnect only works within the same process.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Load(ctx context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.values[Key]
	return id, ok, nil
}

func (s *MemoryStore) Save(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[Key] = id
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, Key)
	return nil
}
