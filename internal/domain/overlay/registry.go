package overlay

import (
	"strings"
	"sync"
)

// RenderedLayer is one concrete overlay attached to a map view's renderer.
type RenderedLayer struct {
	MapID       string       `json:"mapId"`
	Category    Category     `json:"category"`
	IdentityKey string       `json:"identityKey"`
	ZIndex      int          `json:"zIndex"`
	Handle      RenderHandle `json:"handle"`
}

// Registry is the per-map bookkeeping of rendered layers. It never talks to
// the renderer; reconcilers do the attaching and detaching.
type Registry struct {
	mu     sync.RWMutex
	layers map[string][]*RenderedLayer
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{layers: make(map[string][]*RenderedLayer)}
}

// Register records a newly attached layer.
func (r *Registry) Register(layer *RenderedLayer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layers[layer.MapID] = append(r.layers[layer.MapID], layer)
}

// Unregister drops a layer by handle. Returns false if it was not registered.
func (r *Registry) Unregister(mapID string, handle RenderHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	layers := r.layers[mapID]
	for i, l := range layers {
		if l.Handle == handle {
			r.layers[mapID] = append(layers[:i], layers[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns the first layer of the map matching the predicate.
func (r *Registry) Find(mapID string, pred func(*RenderedLayer) bool) *RenderedLayer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.layers[mapID] {
		if pred(l) {
			return l
		}
	}
	return nil
}

// ByHandle resolves a render handle back to its registered layer.
func (r *Registry) ByHandle(mapID string, handle RenderHandle) *RenderedLayer {
	return r.Find(mapID, func(l *RenderedLayer) bool { return l.Handle == handle })
}

// OfCategory lists the map's layers that belong to a logical category.
func (r *Registry) OfCategory(mapID string, cat Category) []*RenderedLayer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*RenderedLayer
	for _, l := range r.layers[mapID] {
		if l.BelongsTo(cat) {
			out = append(out, l)
		}
	}
	return out
}

// Snapshot copies the map's current layer set.
func (r *Registry) Snapshot(mapID string) []RenderedLayer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RenderedLayer, 0, len(r.layers[mapID]))
	for _, l := range r.layers[mapID] {
		out = append(out, *l)
	}
	return out
}

// Count returns the number of registered layers across all maps for a category.
func (r *Registry) Count(cat Category) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, layers := range r.layers {
		for _, l := range layers {
			if l.BelongsTo(cat) {
				n++
			}
		}
	}
	return n
}

// BelongsTo reports whether the layer belongs to a logical category. The
// stored tag is authoritative; the identity-key substring check remains for
// layers registered through upload paths that only encoded the category in
// the layer name.
func (l *RenderedLayer) BelongsTo(cat Category) bool {
	if l.Category == cat {
		return true
	}
	return strings.Contains(l.IdentityKey, string(cat))
}
