package overlay

import (
	"sync"
)

// hitPriority orders categories for hit resolution. Energy markers are small
// and must stay individually selectable even when drawn over a boundary
// polygon that would otherwise always win the test.
var hitPriority = []Category{CategoryEnergy, CategoryBoundary}

// HitResult describes the layer owning the feature under the cursor.
type HitResult struct {
	Category   Category       `json:"category"`
	LayerKey   string         `json:"layerKey"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// HitResolver answers "which layer owns the feature under this pixel" and
// tracks the transient hover state per map view. It never mutates the
// registry or the cache.
type HitResolver struct {
	registry *Registry
	renderer Renderer
	events   *EventBus

	mu    sync.RWMutex
	hover map[string]*HitResult
}

// NewHitResolver constructs the resolver.
func NewHitResolver(registry *Registry, renderer Renderer, events *EventBus) *HitResolver {
	return &HitResolver{
		registry: registry,
		renderer: renderer,
		events:   events,
		hover:    make(map[string]*HitResult),
	}
}

// Resolve returns the highest-priority hit under the pixel, or nil. The
// search short-circuits on the first match in priority order.
func (r *HitResolver) Resolve(mapID string, px Pixel) *HitResult {
	features := r.renderer.HitTest(mapID, px)
	var result *HitResult
	for _, cat := range hitPriority {
		for _, f := range features {
			layer := r.registry.ByHandle(mapID, f.Handle)
			if layer == nil || !layer.BelongsTo(cat) {
				continue
			}
			result = &HitResult{
				Category:   cat,
				LayerKey:   layer.IdentityKey,
				Attributes: f.Attributes,
			}
			break
		}
		if result != nil {
			break
		}
	}
	r.setHover(mapID, result)
	return result
}

// Hover returns the last resolved hover state for a map view, if any.
func (r *HitResolver) Hover(mapID string) *HitResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hover[mapID]
}

func (r *HitResolver) setHover(mapID string, result *HitResult) {
	r.mu.Lock()
	previous := r.hover[mapID]
	if result == nil {
		delete(r.hover, mapID)
	} else {
		r.hover[mapID] = result
	}
	r.mu.Unlock()

	if result == nil && previous == nil {
		return
	}
	ev := EngineEvent{Type: EventHover, MapID: mapID}
	if result != nil {
		ev.Category = result.Category
		ev.Attributes = result.Attributes
	}
	r.events.Publish(ev)
}
