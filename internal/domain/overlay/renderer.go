package overlay

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RenderHandle is an opaque reference to a layer living inside the renderer.
type RenderHandle string

// LayerKind selects the renderer primitive used to draw a layer.
type LayerKind string

const (
	LayerKindRaster LayerKind = "raster"
	LayerKindVector LayerKind = "vector"
	LayerKindMask   LayerKind = "mask"
	LayerKindPoints LayerKind = "points"
)

// LayerSpec describes a layer to attach to one map view.
type LayerSpec struct {
	MapID       string
	Category    Category
	IdentityKey string
	Kind        LayerKind
	ZIndex      int
	Opacity     float64 // 0..1
	Visible     bool
	Features    *geojson.FeatureCollection
	RasterURL   string
	Attributes  map[string]any
}

// Pixel is a view-space coordinate reported by the pointer.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Feature is a single renderer hit-test result.
type Feature struct {
	Handle     RenderHandle
	Attributes map[string]any
}

// EventType discriminates renderer lifecycle events.
type EventType string

const (
	EventLayerAdded   EventType = "layer_added"
	EventLayerRemoved EventType = "layer_removed"
)

// RendererEvent is emitted by the renderer when a layer finishes attaching or
// detaching. Removal events drive the mutual-exclusion handshake.
type RendererEvent struct {
	Type   EventType
	MapID  string
	Handle RenderHandle
}

// Renderer is the drawing capability the engine drives. Implementations own
// the actual map views; the engine addresses a view by its mapID.
type Renderer interface {
	AddLayer(ctx context.Context, spec LayerSpec) (RenderHandle, error)
	RemoveLayer(ctx context.Context, handle RenderHandle) error
	SetOpacity(handle RenderHandle, opacity float64) error
	SetVisible(handle RenderHandle, visible bool) error
	FitToExtent(mapID string, bound orb.Bound) error
	HitTest(mapID string, px Pixel) []Feature
	Events() <-chan RendererEvent
}
