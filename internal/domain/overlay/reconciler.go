package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/escapdev/overlaysync/pkg/errors"
	"github.com/escapdev/overlaysync/pkg/metrics"
)

// PairState is the reconciler state for one (mapID, category) pair.
type PairState string

const (
	StateAbsent   PairState = "absent"
	StateLoading  PairState = "loading"
	StatePresent  PairState = "present"
	StateRemoving PairState = "removing"
)

// DefaultRemoveAckTimeout bounds the wait for the renderer's removal
// acknowledgment during the mutual-exclusion handshake. The value matches
// the settle delay the timer-only scheme used.
const DefaultRemoveAckTimeout = 150 * time.Millisecond

// ReconcilerConfig tunes one map instance's reconciler.
type ReconcilerConfig struct {
	RemoveAckTimeout time.Duration
}

type pair struct {
	state   PairState
	version uint64
	layer   *RenderedLayer
	legend  *LegendSpec
}

// Reconciler keeps one map view's rendered layers converged with the shared
// desired-overlay store. It is the only writer for its mapID's slice of the
// registry; passes are serialized by the run loop, so a second reconciliation
// for the same pair cannot start while a transition is in flight.
type Reconciler struct {
	mapID    string
	cfg      ReconcilerConfig
	store    *Store
	registry *Registry
	renderer Renderer
	source   Source
	masker   *MaskSynthesizer
	dedup    *Deduper
	acks     *AckRouter
	events   *EventBus
	logger   *slog.Logger

	mu             sync.Mutex
	pairs          map[Category]*pair
	generation     uint64
	countryVersion uint64
	country        string
	boundary       *RenderedLayer
	mask           *RenderedLayer
}

// NewReconciler constructs the reconciler for one map view.
func NewReconciler(
	mapID string,
	cfg ReconcilerConfig,
	store *Store,
	registry *Registry,
	renderer Renderer,
	source Source,
	masker *MaskSynthesizer,
	dedup *Deduper,
	acks *AckRouter,
	events *EventBus,
	logger *slog.Logger,
) *Reconciler {
	if cfg.RemoveAckTimeout <= 0 {
		cfg.RemoveAckTimeout = DefaultRemoveAckTimeout
	}
	return &Reconciler{
		mapID:    mapID,
		cfg:      cfg,
		store:    store,
		registry: registry,
		renderer: renderer,
		source:   source,
		masker:   masker,
		dedup:    dedup,
		acks:     acks,
		events:   events,
		logger:   logger.With("component", "overlay.reconciler", "map_id", mapID),
		pairs:    make(map[Category]*pair),
	}
}

// Run subscribes to the map's slice of the store and reconciles on every
// dirty signal until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	tick, cancel := r.store.Subscribe(r.mapID)
	defer cancel()

	r.Reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			r.Reconcile(ctx)
		}
	}
}

// Reconcile performs one full pass against the current desired snapshot.
// Applying the same snapshot twice is a no-op.
func (r *Reconciler) Reconcile(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.store.Snapshot(r.mapID)

	if state.Generation != r.generation {
		r.fullSweep(ctx)
		r.generation = state.Generation
	}

	r.reconcileCountry(ctx, state)

	desired := make(map[Category]VersionedDescriptor, len(state.Descriptors))
	for _, vd := range state.Descriptors {
		desired[vd.Descriptor.Category] = vd
	}
	for _, cat := range DescriptorCategories {
		vd, ok := desired[cat]
		r.reconcilePair(ctx, cat, vd, ok, state)
	}
}

// Legend returns the legend of the currently present raster layer, if any.
func (r *Reconciler) Legend() (*LegendSpec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cat := range []Category{CategoryClimate, CategoryGiri} {
		if p, ok := r.pairs[cat]; ok && p.state == StatePresent && p.legend != nil {
			return p.legend, true
		}
	}
	return nil, false
}

// StateOf reports the current state for a pair.
func (r *Reconciler) StateOf(cat Category) PairState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pair(cat).state
}

func (r *Reconciler) pair(cat Category) *pair {
	p, ok := r.pairs[cat]
	if !ok {
		p = &pair{state: StateAbsent}
		r.pairs[cat] = p
	}
	return p
}

func (r *Reconciler) reconcilePair(ctx context.Context, cat Category, vd VersionedDescriptor, ok bool, state MapState) {
	p := r.pair(cat)

	if !ok || vd.Descriptor.PendingAction == ActionRemove {
		if p.state == StatePresent {
			r.removePair(ctx, cat, p)
		}
		if ok {
			r.store.Delete(r.mapID, cat)
		}
		return
	}

	switch p.state {
	case StateLoading, StateRemoving:
		// In-flight transition for this pair; the pending dirty signal
		// re-runs reconciliation once it settles.
		return
	case StatePresent:
		r.mutatePresent(ctx, cat, p, vd)
		return
	}

	r.addPair(ctx, cat, p, vd, state)
}

// mutatePresent applies opacity/visibility changes in place, without touching
// the cache or re-fetching. Identity changes replace the layer.
func (r *Reconciler) mutatePresent(ctx context.Context, cat Category, p *pair, vd VersionedDescriptor) {
	if p.version == vd.Version {
		return
	}
	d := vd.Descriptor

	switch d.PendingAction {
	case ActionOpacity:
		sig := OpacitySignature(d.Opacity)
		if r.dedup.ShouldApply(r.mapID, cat, ActionOpacity, sig) {
			if err := r.renderer.SetOpacity(p.layer.Handle, float64(d.Opacity)/100); err != nil {
				r.warn(cat, apperrors.Wrap(CodeRenderAttachFailed, "set opacity failed", err))
			} else {
				r.dedup.MarkApplied(r.mapID, cat, ActionOpacity, sig)
			}
		}
		r.store.CompleteAction(r.mapID, cat, vd.Version)
		p.version = vd.Version
	case ActionVisibility:
		sig := VisibilitySignature(d.Visible)
		if r.dedup.ShouldApply(r.mapID, cat, ActionVisibility, sig) {
			if err := r.renderer.SetVisible(p.layer.Handle, d.Visible); err != nil {
				r.warn(cat, apperrors.Wrap(CodeRenderAttachFailed, "set visibility failed", err))
			} else {
				r.dedup.MarkApplied(r.mapID, cat, ActionVisibility, sig)
			}
		}
		r.store.CompleteAction(r.mapID, cat, vd.Version)
		p.version = vd.Version
	default:
		if d.IdentityKey() != p.layer.IdentityKey {
			r.removePair(ctx, cat, p)
			r.addPair(ctx, cat, p, vd, r.store.Snapshot(r.mapID))
			return
		}
		p.version = vd.Version
	}
}

// addPair runs the ABSENT -> LOADING -> PRESENT transition, evicting a
// mutually exclusive layer first and waiting for its removal acknowledgment
// before the new fetch starts.
func (r *Reconciler) addPair(ctx context.Context, cat Category, p *pair, vd VersionedDescriptor, state MapState) {
	for _, other := range DescriptorCategories {
		if !cat.Excludes(other) {
			continue
		}
		op := r.pair(other)
		if op.state == StatePresent {
			r.removePair(ctx, other, op)
			r.store.Delete(r.mapID, other)
		}
	}

	r.transition(cat, p, StateLoading)

	d := vd.Descriptor
	spec := LayerSpec{
		MapID:       r.mapID,
		Category:    cat,
		IdentityKey: d.IdentityKey(),
		ZIndex:      ZIndexFor(cat),
		Opacity:     float64(d.Opacity) / 100,
		Visible:     d.Visible,
	}
	var legend *LegendSpec

	switch cat {
	case CategoryClimate, CategoryGiri:
		rasters, err := r.source.Rasters(ctx, state.Country, cat)
		if err != nil {
			r.failLoad(cat, p, err)
			return
		}
		match := MatchRaster(rasters, d)
		if match == nil {
			r.failLoad(cat, p, apperrors.Wrap(CodeNoMatchingResource,
				fmt.Sprintf("no %s raster named %q for country %q", cat, d.Name, state.Country), nil))
			return
		}
		spec.Kind = LayerKindRaster
		spec.RasterURL = match.URL
		legend = match.Legend
	case CategoryEnergy:
		resources, err := r.source.Energy(ctx, state.Country)
		if err != nil {
			r.failLoad(cat, p, err)
			return
		}
		var matched *EnergyResource
		for i := range resources {
			if resources[i].Type == d.Name {
				matched = &resources[i]
				break
			}
		}
		if matched == nil {
			r.failLoad(cat, p, apperrors.Wrap(CodeNoMatchingResource,
				fmt.Sprintf("no energy layer of type %q for country %q", d.Name, state.Country), nil))
			return
		}
		spec.Kind = LayerKindPoints
		spec.Features = matched.Features
		spec.Attributes = map[string]any{
			"capacityAttribute": matched.CapacityAttribute,
			"icon":              matched.IconPath,
		}
	}

	// A stale fetch completion must never overwrite a newer desired state.
	if cur, ok := r.store.Get(r.mapID, cat); !ok || cur.Version != vd.Version {
		r.transition(cat, p, StateAbsent)
		return
	}

	handle, err := r.renderer.AddLayer(ctx, spec)
	if err != nil {
		r.failLoad(cat, p, apperrors.Wrap(CodeRenderAttachFailed, "renderer rejected layer", err))
		return
	}

	layer := &RenderedLayer{
		MapID:       r.mapID,
		Category:    cat,
		IdentityKey: spec.IdentityKey,
		ZIndex:      spec.ZIndex,
		Handle:      handle,
	}
	r.registry.Register(layer)
	metrics.ActiveLayers.WithLabelValues(string(cat)).Inc()

	p.layer = layer
	p.legend = legend
	p.version = vd.Version
	r.transition(cat, p, StatePresent)
	r.store.CompleteAction(r.mapID, cat, vd.Version)
}

// removePair runs PRESENT -> REMOVING -> ABSENT, waiting for the renderer's
// removal acknowledgment so a replacing add never overlaps the old layer.
func (r *Reconciler) removePair(ctx context.Context, cat Category, p *pair) {
	if p.layer == nil {
		p.state = StateAbsent
		return
	}
	r.transition(cat, p, StateRemoving)

	r.detachLayer(ctx, p.layer)
	metrics.ActiveLayers.WithLabelValues(string(cat)).Dec()

	p.layer = nil
	p.legend = nil
	r.transition(cat, p, StateAbsent)
}

// detachLayer removes a layer from the renderer, waits for the removal
// acknowledgment (bounded by the fallback timer), and unregisters it.
func (r *Reconciler) detachLayer(ctx context.Context, layer *RenderedLayer) {
	ack := r.acks.Expect(layer.Handle)
	defer r.acks.Forget(layer.Handle)

	if err := r.renderer.RemoveLayer(ctx, layer.Handle); err != nil {
		r.logger.Warn("renderer remove failed", "identity_key", layer.IdentityKey, "error", err)
	}
	select {
	case <-ack:
	case <-time.After(r.cfg.RemoveAckTimeout):
		r.logger.Debug("removal ack timed out, proceeding after settle delay", "identity_key", layer.IdentityKey)
	case <-ctx.Done():
	}

	r.registry.Unregister(layer.MapID, layer.Handle)
}

// fullSweep clears the raster and energy bands so the current desired set can
// be re-applied from scratch. Boundary and mask layers are left in place;
// they are keyed on country alone and expensive to refetch.
func (r *Reconciler) fullSweep(ctx context.Context) {
	for _, cat := range DescriptorCategories {
		p := r.pair(cat)
		if p.state == StatePresent {
			r.removePair(ctx, cat, p)
		}
	}
}

// reconcileCountry handles the narrow boundary/mask sweep. Mask identity is
// 1:1 with boundary identity, so both are replaced together.
func (r *Reconciler) reconcileCountry(ctx context.Context, state MapState) {
	if state.CountryVersion == r.countryVersion {
		return
	}
	r.countryVersion = state.CountryVersion

	r.removeCountryLayers(ctx)
	r.country = state.Country
	if state.Country == "" {
		return
	}

	b, err := r.source.Boundary(ctx, state.Country)
	if err != nil {
		r.warn(CategoryBoundary, err)
		return
	}

	// Discard stale completions if the selection moved on during the fetch.
	if cur := r.store.Snapshot(r.mapID); cur.CountryVersion != state.CountryVersion {
		return
	}

	boundarySpec := LayerSpec{
		MapID:       r.mapID,
		Category:    CategoryBoundary,
		IdentityKey: state.Country + "_boundary",
		Kind:        LayerKindVector,
		ZIndex:      ZIndexFor(CategoryBoundary),
		Opacity:     1,
		Visible:     true,
		Features:    b.Features,
		Attributes:  map[string]any{"hoverAttribute": b.HoverAttribute},
	}
	handle, err := r.renderer.AddLayer(ctx, boundarySpec)
	if err != nil {
		r.warn(CategoryBoundary, apperrors.Wrap(CodeRenderAttachFailed, "boundary attach failed", err))
		return
	}
	r.boundary = &RenderedLayer{
		MapID:       r.mapID,
		Category:    CategoryBoundary,
		IdentityKey: boundarySpec.IdentityKey,
		ZIndex:      boundarySpec.ZIndex,
		Handle:      handle,
	}
	r.registry.Register(r.boundary)
	metrics.ActiveLayers.WithLabelValues(string(CategoryBoundary)).Inc()

	maskSpec, err := r.masker.Synthesize(ctx, r.mapID, state.Country, b.MaskRef)
	if err != nil {
		r.warn(CategoryMask, err)
	} else if maskHandle, err := r.renderer.AddLayer(ctx, maskSpec); err != nil {
		r.warn(CategoryMask, apperrors.Wrap(CodeRenderAttachFailed, "mask attach failed", err))
	} else {
		r.mask = &RenderedLayer{
			MapID:       r.mapID,
			Category:    CategoryMask,
			IdentityKey: maskSpec.IdentityKey,
			ZIndex:      maskSpec.ZIndex,
			Handle:      maskHandle,
		}
		r.registry.Register(r.mask)
		metrics.ActiveLayers.WithLabelValues(string(CategoryMask)).Inc()
	}

	if err := r.renderer.FitToExtent(r.mapID, b.Bounds); err != nil {
		r.logger.Warn("fit to extent failed", "country", state.Country, "error", err)
	}
}

func (r *Reconciler) removeCountryLayers(ctx context.Context) {
	if r.mask != nil {
		r.detachLayer(ctx, r.mask)
		metrics.ActiveLayers.WithLabelValues(string(CategoryMask)).Dec()
		r.mask = nil
	}
	if r.boundary != nil {
		r.detachLayer(ctx, r.boundary)
		metrics.ActiveLayers.WithLabelValues(string(CategoryBoundary)).Dec()
		r.boundary = nil
	}
}

// failLoad returns a pair to ABSENT after a failed load. There is no
// persistent error state; re-issuing the same desired change retries.
func (r *Reconciler) failLoad(cat Category, p *pair, err error) {
	if code := apperrors.CodeOf(err); code == "" || code == CodeFetchFailed {
		metrics.ResourceFetchFailuresTotal.WithLabelValues(string(cat)).Inc()
	}
	r.warn(cat, err)
	r.transition(cat, p, StateAbsent)
}

func (r *Reconciler) transition(cat Category, p *pair, next PairState) {
	p.state = next
	metrics.ReconcileTransitionsTotal.WithLabelValues(string(next)).Inc()
	r.events.Publish(EngineEvent{
		Type:     EventTransition,
		MapID:    r.mapID,
		Category: cat,
		State:    string(next),
	})
}

func (r *Reconciler) warn(cat Category, err error) {
	r.logger.Warn("reconcile warning", "category", cat, "error", err)
	r.events.Publish(EngineEvent{
		Type:     EventWarning,
		MapID:    r.mapID,
		Category: cat,
		Message:  err.Error(),
	})
}
