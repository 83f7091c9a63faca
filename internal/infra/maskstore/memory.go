package maskstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/escapdev/overlaysync/internal/domain/overlay"
	apperrors "github.com/escapdev/overlaysync/pkg/errors"
)

// MemoryStore holds mask documents in process memory for tests and dev runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put stores a mask document under a reference.
func (s *MemoryStore) Put(ref string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[ref] = data
}

// Fetch implements ObjectStore.
func (s *MemoryStore) Fetch(_ context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[ref]
	if !ok {
		return nil, apperrors.Wrap(overlay.CodeNoMatchingResource,
			fmt.Sprintf("mask object %q not found", ref), nil)
	}
	return data, nil
}

var _ ObjectStore = (*MemoryStore)(nil)
