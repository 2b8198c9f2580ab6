package store

import (
	"context"
	"sync"

	"dialpilot/pkg/identity"
)

// MemoryStore keeps the sender-to-context mapping in-process. Mappings live
// for the process lifetime; a restart starts every sender on a fresh context.
type MemoryStore struct {
	mu       sync.RWMutex
	contexts map[identity.Key]*Context
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contexts: make(map[identity.Key]*Context),
	}
}

func (s *MemoryStore) Get(_ context.Context, key identity.Key) (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.contexts[key]
	if !exists {
		return nil, nil
	}

	copied := *value
	return &copied, nil
}

func (s *MemoryStore) Put(_ context.Context, key identity.Key, value *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *value
	s.contexts[key] = &copied
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key identity.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.contexts, key)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contexts = nil
	return nil
}
