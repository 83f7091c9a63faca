// Package renderer provides a headless in-process implementation of the
// overlay.Renderer contract. It keeps real layer bookkeeping, answers
// geometric hit-tests against attached GeoJSON, and acknowledges layer
// lifecycle over the event stream, which makes it usable both as the dev
// renderer and as the test double for the engine.
package renderer

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/escapdev/overlaysync/internal/domain/overlay"
)

// pointHitTolerance is the hit radius for point features, in degrees.
const pointHitTolerance = 0.25

type layer struct {
	spec    overlay.LayerSpec
	opacity float64
	visible bool
}

// Headless implements overlay.Renderer without a display.
type Headless struct {
	mu      sync.RWMutex
	layers  map[overlay.RenderHandle]*layer
	extents map[string]orb.Bound
	events  chan overlay.RendererEvent

	addCalls     int
	removeCalls  int
	opacityCalls int
	visibleCalls int
}

// NewHeadless constructs the renderer.
func NewHeadless() *Headless {
	return &Headless{
		layers:  make(map[overlay.RenderHandle]*layer),
		extents: make(map[string]orb.Bound),
		events:  make(chan overlay.RendererEvent, 64),
	}
}

var _ overlay.Renderer = (*Headless)(nil)

// AddLayer implements overlay.Renderer.
func (h *Headless) AddLayer(_ context.Context, spec overlay.LayerSpec) (overlay.RenderHandle, error) {
	if spec.MapID == "" || spec.IdentityKey == "" {
		return "", fmt.Errorf("layer spec missing map id or identity key")
	}
	if spec.Kind == overlay.LayerKindRaster && spec.RasterURL == "" {
		return "", fmt.Errorf("raster layer %q has no source url", spec.IdentityKey)
	}

	handle := overlay.RenderHandle(uuid.NewString())
	h.mu.Lock()
	h.layers[handle] = &layer{spec: spec, opacity: spec.Opacity, visible: spec.Visible}
	h.addCalls++
	h.mu.Unlock()

	h.emit(overlay.RendererEvent{Type: overlay.EventLayerAdded, MapID: spec.MapID, Handle: handle})
	return handle, nil
}

// RemoveLayer implements overlay.Renderer.
func (h *Headless) RemoveLayer(_ context.Context, handle overlay.RenderHandle) error {
	h.mu.Lock()
	l, ok := h.layers[handle]
	if ok {
		delete(h.layers, handle)
		h.removeCalls++
	}
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown layer handle %q", handle)
	}
	h.emit(overlay.RendererEvent{Type: overlay.EventLayerRemoved, MapID: l.spec.MapID, Handle: handle})
	return nil
}

// SetOpacity implements overlay.Renderer.
func (h *Headless) SetOpacity(handle overlay.RenderHandle, opacity float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.layers[handle]
	if !ok {
		return fmt.Errorf("unknown layer handle %q", handle)
	}
	l.opacity = opacity
	h.opacityCalls++
	return nil
}

// SetVisible implements overlay.Renderer.
func (h *Headless) SetVisible(handle overlay.RenderHandle, visible bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.layers[handle]
	if !ok {
		return fmt.Errorf("unknown layer handle %q", handle)
	}
	l.visible = visible
	h.visibleCalls++
	return nil
}

// FitToExtent implements overlay.Renderer.
func (h *Headless) FitToExtent(mapID string, bound orb.Bound) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.extents[mapID] = bound
	return nil
}

// HitTest implements overlay.Renderer by geometric containment: point
// features match within a small tolerance, polygons by planar containment.
func (h *Headless) HitTest(mapID string, px overlay.Pixel) []overlay.Feature {
	point := orb.Point{px.X, px.Y}
	h.mu.RLock()
	defer h.mu.RUnlock()

	var hits []overlay.Feature
	for handle, l := range h.layers {
		if l.spec.MapID != mapID || !l.visible || l.spec.Features == nil {
			continue
		}
		for _, f := range l.spec.Features.Features {
			if !geometryContains(f.Geometry, point) {
				continue
			}
			attrs := make(map[string]any, len(f.Properties))
			for k, v := range f.Properties {
				attrs[k] = v
			}
			hits = append(hits, overlay.Feature{Handle: handle, Attributes: attrs})
			break
		}
	}
	return hits
}

// Events implements overlay.Renderer.
func (h *Headless) Events() <-chan overlay.RendererEvent {
	return h.events
}

// Extent returns the last viewport fit for a map, for assertions.
func (h *Headless) Extent(mapID string) (orb.Bound, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	b, ok := h.extents[mapID]
	return b, ok
}

// Layer returns the live state of a handle, for assertions.
func (h *Headless) Layer(handle overlay.RenderHandle) (overlay.LayerSpec, float64, bool, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	l, ok := h.layers[handle]
	if !ok {
		return overlay.LayerSpec{}, 0, false, false
	}
	return l.spec, l.opacity, l.visible, true
}

// Calls reports operation counts: add, remove, opacity, visibility.
func (h *Headless) Calls() (int, int, int, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.addCalls, h.removeCalls, h.opacityCalls, h.visibleCalls
}

func (h *Headless) emit(ev overlay.RendererEvent) {
	select {
	case h.events <- ev:
	default:
	}
}

func geometryContains(g orb.Geometry, point orb.Point) bool {
	switch geom := g.(type) {
	case orb.Point:
		return planar.Distance(geom, point) <= pointHitTolerance
	case orb.MultiPoint:
		for _, p := range geom {
			if planar.Distance(p, point) <= pointHitTolerance {
				return true
			}
		}
	case orb.Polygon:
		return planar.PolygonContains(geom, point)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, point)
	}
	return false
}
