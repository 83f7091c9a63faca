// Package rescache is the process-wide resource cache and request coalescer.
// Concurrent map views requesting the same resource share a single in-flight
// fetch; ready entries are immutable for the process lifetime and stale data
// is busted by bumping the version suffix baked into each key, not by TTLs.
package rescache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/singleflight"

	"github.com/escapdev/overlaysync/internal/domain/overlay"
	"github.com/escapdev/overlaysync/pkg/metrics"
)

// Key versions. Bump when the server payload shape changes.
const (
	boundaryKeyVersion = 2
	maskKeyVersion     = 2
	rasterKeyVersion   = 1
	energyKeyVersion   = 1
)

// Cache wraps a Source and MaskFetcher with coalescing and memoization.
type Cache struct {
	source overlay.Source
	masks  overlay.MaskFetcher
	logger *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	ready map[string]any
}

// New constructs the cache around the given collaborators.
func New(source overlay.Source, masks overlay.MaskFetcher, logger *slog.Logger) *Cache {
	return &Cache{
		source: source,
		masks:  masks,
		logger: logger.With("component", "rescache"),
		ready:  make(map[string]any),
	}
}

var (
	_ overlay.Source      = (*Cache)(nil)
	_ overlay.MaskFetcher = (*Cache)(nil)
)

// Boundary implements overlay.Source with a coalesced, memoized fetch.
func (c *Cache) Boundary(ctx context.Context, country string) (overlay.BoundaryResource, error) {
	key := fmt.Sprintf("boundary_%s_v%d", country, boundaryKeyVersion)
	v, err := c.fetch(ctx, key, "boundary", func(ctx context.Context) (any, error) {
		return c.source.Boundary(ctx, country)
	})
	if err != nil {
		return overlay.BoundaryResource{}, err
	}
	return v.(overlay.BoundaryResource), nil
}

// Rasters implements overlay.Source.
func (c *Cache) Rasters(ctx context.Context, country string, cat overlay.Category) ([]overlay.RasterResource, error) {
	key := fmt.Sprintf("raster_%s_%s_v%d", country, cat, rasterKeyVersion)
	v, err := c.fetch(ctx, key, "raster", func(ctx context.Context) (any, error) {
		return c.source.Rasters(ctx, country, cat)
	})
	if err != nil {
		return nil, err
	}
	return v.([]overlay.RasterResource), nil
}

// Energy implements overlay.Source.
func (c *Cache) Energy(ctx context.Context, country string) ([]overlay.EnergyResource, error) {
	key := fmt.Sprintf("energy_%s_v%d", country, energyKeyVersion)
	v, err := c.fetch(ctx, key, "energy", func(ctx context.Context) (any, error) {
		return c.source.Energy(ctx, country)
	})
	if err != nil {
		return nil, err
	}
	return v.([]overlay.EnergyResource), nil
}

// FetchMask implements overlay.MaskFetcher.
func (c *Cache) FetchMask(ctx context.Context, ref string) (*geojson.FeatureCollection, error) {
	key := fmt.Sprintf("mask_%s_v%d", ref, maskKeyVersion)
	v, err := c.fetch(ctx, key, "mask", func(ctx context.Context) (any, error) {
		return c.masks.FetchMask(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	return v.(*geojson.FeatureCollection), nil
}

// fetch serves a ready entry, attaches to an in-flight fetch, or starts one.
// Failures are never memoized; the next caller retries from scratch.
func (c *Cache) fetch(ctx context.Context, key, kind string, load func(context.Context) (any, error)) (any, error) {
	c.mu.RLock()
	v, ok := c.ready[key]
	c.mu.RUnlock()
	if ok {
		metrics.ResourceCacheHitsTotal.Inc()
		return v, nil
	}

	// In-flight fetches are deliberately never cancelled: a stale response is
	// either cached harmlessly or not consumed by the caller.
	loadCtx := context.WithoutCancel(ctx)
	v, err, shared := c.group.Do(key, func() (any, error) {
		metrics.ResourceCacheMissesTotal.Inc()
		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.ready[key] = value
		c.mu.Unlock()
		return value, nil
	})
	if shared {
		metrics.ResourceCacheCoalescedTotal.Inc()
	}
	if err != nil {
		metrics.ResourceFetchFailuresTotal.WithLabelValues(kind).Inc()
		c.logger.Warn("resource fetch failed", "key", key, "error", err)
		return nil, err
	}
	return v, nil
}
