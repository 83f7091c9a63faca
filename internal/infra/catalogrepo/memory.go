package catalogrepo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/escapdev/overlaysync/internal/domain/catalog"
)

// MemoryRepository is an in-memory catalog.Repository for tests and dev runs.
type MemoryRepository struct {
	mu     sync.RWMutex
	byName map[string]catalog.CountryLayers
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byName: make(map[string]catalog.CountryLayers)}
}

var _ catalog.Repository = (*MemoryRepository)(nil)

// Seed stores a country's layer set.
func (r *MemoryRepository) Seed(layers catalog.CountryLayers) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[strings.ToLower(layers.Country)] = layers
}

// CountryLayers implements catalog.Repository.
func (r *MemoryRepository) CountryLayers(_ context.Context, country string) (catalog.CountryLayers, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	layers, ok := r.byName[strings.ToLower(country)]
	return layers, ok, nil
}

// Countries implements catalog.Repository.
func (r *MemoryRepository) Countries(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}
