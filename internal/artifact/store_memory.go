package artifact

import (
	"context"
	"sync"

	dErrors "refiling/pkg/domain-errors"
)

// InMemoryStore keeps sealed artifacts in a map. Used in tests and when no
// Postgres URL is configured.
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]*Artifact
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[string]*Artifact)}
}

func (s *InMemoryStore) Put(_ context.Context, a *Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.artifacts[a.Hash]; exists {
		return nil
	}
	copied := *a
	copied.Compressed = append([]byte(nil), a.Compressed...)
	s.artifacts[a.Hash] = &copied
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, hash string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.artifacts[hash]
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "artifact not found: "+hash)
	}
	copied := *a
	copied.Compressed = append([]byte(nil), a.Compressed...)
	return &copied, nil
}
