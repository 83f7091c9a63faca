package catalogcache

import (
	"context"
	"sync"
	"time"

	"github.com/escapdev/overlaysync/internal/domain/catalog"
)

type cachedLayers struct {
	payload   catalog.CountryLayers
	expiresAt time.Time
}

// MemoryStore is an in-memory catalog.Store for tests and single-process runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]cachedLayers
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]cachedLayers)}
}

var _ catalog.Store = (*MemoryStore)(nil)

// Get implements catalog.Store.
func (s *MemoryStore) Get(_ context.Context, country string) (catalog.CountryLayers, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[country]
	s.mu.RUnlock()
	if !ok {
		return catalog.CountryLayers{}, false, nil
	}
	if !entry.expiresAt.IsZero() && entry.expiresAt.Before(time.Now()) {
		s.mu.Lock()
		delete(s.entries, country)
		s.mu.Unlock()
		return catalog.CountryLayers{}, false, nil
	}
	return entry.payload, true, nil
}

// Set implements catalog.Store.
func (s *MemoryStore) Set(_ context.Context, country string, layers catalog.CountryLayers, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp := time.Time{}
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	s.entries[country] = cachedLayers{payload: layers, expiresAt: exp}
	return nil
}

// Invalidate implements catalog.Store.
func (s *MemoryStore) Invalidate(_ context.Context, country string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, country)
	return nil
}
