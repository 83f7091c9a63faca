package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/escapdev/overlaysync/pkg/errors"
)

// DefaultMaxMapViews caps the number of independently scrollable map views.
const DefaultMaxMapViews = 4

// EngineConfig tunes the whole engine.
type EngineConfig struct {
	MaxMapViews      int
	RemoveAckTimeout time.Duration
	DedupTTL         time.Duration
}

// Engine owns one reconciler per map view plus the shared store, registry,
// renderer acknowledgment pump and event bus. It is the upward-facing API.
type Engine struct {
	cfg      EngineConfig
	store    *Store
	registry *Registry
	renderer Renderer
	source   Source
	masker   *MaskSynthesizer
	dedup    *Deduper
	acks     *AckRouter
	events   *EventBus
	resolver *HitResolver
	logger   *slog.Logger

	mu          sync.Mutex
	runCtx      context.Context
	cancel      context.CancelFunc
	reconcilers map[string]*Reconciler
	wg          sync.WaitGroup
}

// NewEngine wires the engine from its collaborators.
func NewEngine(
	cfg EngineConfig,
	store *Store,
	registry *Registry,
	renderer Renderer,
	source Source,
	masker *MaskSynthesizer,
	events *EventBus,
	logger *slog.Logger,
) *Engine {
	if cfg.MaxMapViews <= 0 {
		cfg.MaxMapViews = DefaultMaxMapViews
	}
	e := &Engine{
		cfg:         cfg,
		store:       store,
		registry:    registry,
		renderer:    renderer,
		source:      source,
		masker:      masker,
		dedup:       NewDeduper(cfg.DedupTTL, nil),
		acks:        NewAckRouter(),
		events:      events,
		logger:      logger.With("component", "overlay.engine"),
		reconcilers: make(map[string]*Reconciler),
	}
	e.resolver = NewHitResolver(registry, renderer, events)
	return e
}

// Start launches the renderer event pump. Reconcilers spawned later inherit
// the given context.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runCtx != nil {
		return
	}
	e.runCtx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-e.runCtx.Done():
				return
			case ev, ok := <-e.renderer.Events():
				if !ok {
					return
				}
				e.acks.Dispatch(ev)
			}
		}
	}()
}

// Stop cancels every reconciler and waits for them to drain.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// EnsureMap registers a map view, spawning its reconciler on first use.
func (e *Engine) EnsureMap(mapID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runCtx == nil {
		return apperrors.Wrap("invalid_input", "engine not started", nil)
	}
	if _, ok := e.reconcilers[mapID]; ok {
		return nil
	}
	if len(e.reconcilers) >= e.cfg.MaxMapViews {
		return apperrors.Wrap("invalid_input",
			fmt.Sprintf("map view limit of %d reached", e.cfg.MaxMapViews), nil)
	}
	rec := NewReconciler(
		mapID,
		ReconcilerConfig{RemoveAckTimeout: e.cfg.RemoveAckTimeout},
		e.store, e.registry, e.renderer, e.source, e.masker,
		e.dedup, e.acks, e.events, e.logger,
	)
	e.reconcilers[mapID] = rec
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		rec.Run(e.runCtx)
	}()
	e.logger.Info("map view registered", "map_id", mapID)
	return nil
}

func (e *Engine) reconciler(mapID string) (*Reconciler, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.reconcilers[mapID]
	return rec, ok
}

// SetOverlay writes the desired descriptor for a (map, category) pair.
func (e *Engine) SetOverlay(mapID string, d Descriptor) error {
	d.MapID = mapID
	if d.PendingAction == "" {
		d.PendingAction = ActionAdd
	}
	if err := d.Validate(); err != nil {
		return err
	}
	if err := e.EnsureMap(mapID); err != nil {
		return err
	}
	e.store.Set(mapID, d)
	return nil
}

// SetOpacity mutates the opacity of an active overlay in place.
func (e *Engine) SetOpacity(mapID string, cat Category, opacity int) error {
	if opacity < 0 || opacity > 100 {
		return apperrors.Wrap("invalid_input", "opacity must be between 0 and 100", nil)
	}
	vd, ok := e.store.Get(mapID, cat)
	if !ok {
		return apperrors.Wrap(CodeNoMatchingResource,
			fmt.Sprintf("no active %s overlay on map %q", cat, mapID), nil)
	}
	d := vd.Descriptor
	d.Opacity = opacity
	d.PendingAction = ActionOpacity
	d.ActionPayload = OpacitySignature(opacity)
	e.store.Set(mapID, d)
	return nil
}

// SetVisibility toggles an active overlay without detaching it.
func (e *Engine) SetVisibility(mapID string, cat Category, visible bool) error {
	vd, ok := e.store.Get(mapID, cat)
	if !ok {
		return apperrors.Wrap(CodeNoMatchingResource,
			fmt.Sprintf("no active %s overlay on map %q", cat, mapID), nil)
	}
	d := vd.Descriptor
	d.Visible = visible
	d.PendingAction = ActionVisibility
	d.ActionPayload = VisibilitySignature(visible)
	e.store.Set(mapID, d)
	return nil
}

// RemoveOverlay marks a pair for removal; the reconciler garbage-collects it.
func (e *Engine) RemoveOverlay(mapID string, cat Category) error {
	if !e.store.MarkRemoval(mapID, cat) {
		return apperrors.Wrap(CodeNoMatchingResource,
			fmt.Sprintf("no active %s overlay on map %q", cat, mapID), nil)
	}
	return nil
}

// ReplaceOverlays swaps a map's whole desired set, forcing a full sweep.
func (e *Engine) ReplaceOverlays(mapID string, descriptors []Descriptor) error {
	for i := range descriptors {
		descriptors[i].MapID = mapID
		if err := descriptors[i].Validate(); err != nil {
			return err
		}
	}
	if err := e.EnsureMap(mapID); err != nil {
		return err
	}
	e.store.Replace(mapID, descriptors)
	return nil
}

// SetCountry selects the boundary (and mask) country for a map view.
func (e *Engine) SetCountry(mapID, country string) error {
	if err := e.EnsureMap(mapID); err != nil {
		return err
	}
	e.store.SetCountry(mapID, country)
	return nil
}

// Legend returns the active raster legend for a map view.
func (e *Engine) Legend(mapID string) (*LegendSpec, bool) {
	rec, ok := e.reconciler(mapID)
	if !ok {
		return nil, false
	}
	return rec.Legend()
}

// Layers snapshots the registry for a map view.
func (e *Engine) Layers(mapID string) []RenderedLayer {
	return e.registry.Snapshot(mapID)
}

// Desired snapshots the desired-overlay state for a map view.
func (e *Engine) Desired(mapID string) MapState {
	return e.store.Snapshot(mapID)
}

// Hit resolves the feature under a pixel, updating hover state.
func (e *Engine) Hit(mapID string, px Pixel) *HitResult {
	return e.resolver.Resolve(mapID, px)
}

// Hover returns the last hover result for a map view.
func (e *Engine) Hover(mapID string) *HitResult {
	return e.resolver.Hover(mapID)
}

// Subscribe exposes the engine event stream for one map view.
func (e *Engine) Subscribe(mapID string) (<-chan EngineEvent, func()) {
	return e.events.Subscribe(mapID)
}
