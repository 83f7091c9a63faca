package unit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"

	"github.com/escapdev/overlaysync/internal/domain/catalog"
	"github.com/escapdev/overlaysync/internal/domain/overlay"
	"github.com/escapdev/overlaysync/internal/infra/catalogcache"
	"github.com/escapdev/overlaysync/internal/infra/catalogrepo"
	"github.com/escapdev/overlaysync/internal/infra/maskstore"
	"github.com/escapdev/overlaysync/internal/infra/metadata"
	"github.com/escapdev/overlaysync/internal/infra/renderer"
	"github.com/escapdev/overlaysync/internal/infra/rescache"
)

type countingRepository struct {
	inner catalog.Repository
	calls int64
}

func (r *countingRepository) CountryLayers(ctx context.Context, country string) (catalog.CountryLayers, bool, error) {
	atomic.AddInt64(&r.calls, 1)
	return r.inner.CountryLayers(ctx, country)
}

func (r *countingRepository) Countries(ctx context.Context) ([]string, error) {
	return r.inner.Countries(ctx)
}

type engineStack struct {
	engine   *overlay.Engine
	renderer *renderer.Headless
	repo     *countingRepository
	masks    *maskstore.MemoryStore
}

func newEngineStack(t *testing.T) *engineStack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	memRepo := catalogrepo.NewMemoryRepository()
	seedCountries(memRepo)
	repo := &countingRepository{inner: memRepo}
	catalogSvc := catalog.NewService(catalog.Config{CacheTTL: time.Minute}, repo, catalogcache.NewMemoryStore(), logger)

	masks := maskstore.NewMemoryStore()
	cache := rescache.New(metadata.NewLocalSource(catalogSvc), maskstore.NewFetcher(masks), logger)

	headless := renderer.NewHeadless()
	engine := overlay.NewEngine(
		overlay.EngineConfig{RemoveAckTimeout: 5 * time.Millisecond},
		overlay.NewStore(), overlay.NewRegistry(), headless,
		cache, overlay.NewMaskSynthesizer(cache, logger), overlay.NewEventBus(), logger,
	)
	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)
	t.Cleanup(func() {
		cancel()
		engine.Stop()
	})
	return &engineStack{engine: engine, renderer: headless, repo: repo, masks: masks}
}

func seedCountries(repo *catalogrepo.MemoryRepository) {
	boundaryFC := geojson.NewFeatureCollection()
	b := geojson.NewFeature(orb.Polygon{{{97, 5}, {106, 5}, {106, 21}, {97, 21}, {97, 5}}})
	b.Properties = geojson.Properties{"NAME_1": "Thailand"}
	boundaryFC.Append(b)

	energyFC := geojson.NewFeatureCollection()
	p := geojson.NewFeature(orb.Point{100, 15})
	p.Properties = geojson.Properties{"capacity_mw": 120.0}
	energyFC.Append(p)

	repo.Seed(catalog.CountryLayers{
		Country: "thailand",
		Climate: []catalog.ClimateLayer{{
			Variable: "rainfall", Scenario: "ssp245", WMSURL: "https://wms/rainfall",
			Classification: &overlay.LegendSpec{Title: "Rainfall"},
		}},
		Giri: []catalog.GiriLayer{{Variable: "flood", WMSURL: "https://wms/flood"}},
		Energy: []catalog.EnergyLayer{{
			InfrastructureType: "solar", CapacityAttribute: "capacity_mw", Features: energyFC,
		}},
		Boundaries: []catalog.BoundaryLayer{{
			HoverAttribute: "NAME_1",
			FeatureCount:   1,
			Bounds:         [4]float64{97, 5, 106, 21},
			MaskRef:        "masks/thailand.geojson",
			Features:       boundaryFC,
		}},
	})
}

func (s *engineStack) waitForLayer(t *testing.T, mapID, identityKey string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, l := range s.engine.Layers(mapID) {
			if l.IdentityKey == identityKey {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func (s *engineStack) waitForAbsence(t *testing.T, mapID, identityKey string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, l := range s.engine.Layers(mapID) {
			if l.IdentityKey == identityKey {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTwoMapViewsShareOneCatalogFetch(t *testing.T) {
	s := newEngineStack(t)

	require.NoError(t, s.engine.SetCountry("map-1", "thailand"))
	require.NoError(t, s.engine.SetCountry("map-2", "thailand"))

	s.waitForLayer(t, "map-1", "thailand_boundary")
	s.waitForLayer(t, "map-2", "thailand_boundary")

	require.Equal(t, int64(1), atomic.LoadInt64(&s.repo.calls),
		"both map views must share one upstream fetch for the same country")
}

func TestServerMaskIsUsedWhenPresent(t *testing.T) {
	s := newEngineStack(t)

	serverMask := geojson.NewFeatureCollection()
	serverMask.Append(geojson.NewFeature(orb.Polygon{{{-180, -90}, {180, -90}, {180, 90}, {-180, 90}, {-180, -90}}}))
	payload, err := json.Marshal(serverMask)
	require.NoError(t, err)
	s.masks.Put("masks/thailand.geojson", payload)

	require.NoError(t, s.engine.SetCountry("map-1", "thailand"))
	s.waitForLayer(t, "map-1", "thailand_mask")

	var mask *overlay.RenderedLayer
	for _, l := range s.engine.Layers("map-1") {
		if l.Category == overlay.CategoryMask {
			copied := l
			mask = &copied
			break
		}
	}
	require.NotNil(t, mask)
	spec, _, _, ok := s.renderer.Layer(mask.Handle)
	require.True(t, ok)
	require.NotNil(t, spec.Features)
	require.Equal(t, overlay.ZBandMask, spec.ZIndex)
	_, isSynthesized := spec.Features.Features[0].Properties["synthesized"]
	require.False(t, isSynthesized, "the precomputed mask must win over the fallback")
}

func TestMutualExclusionAcrossEngineAPI(t *testing.T) {
	s := newEngineStack(t)

	require.NoError(t, s.engine.SetCountry("map-1", "thailand"))
	require.NoError(t, s.engine.SetOverlay("map-1", overlay.Descriptor{
		Category: overlay.CategoryClimate, Name: "rainfall", Scenario: "ssp245", Opacity: 80, Visible: true,
	}))
	s.waitForLayer(t, "map-1", "rainfall_climate")

	require.NoError(t, s.engine.SetOverlay("map-1", overlay.Descriptor{
		Category: overlay.CategoryGiri, Name: "flood", Opacity: 100, Visible: true,
	}))
	s.waitForLayer(t, "map-1", "flood_giri")
	s.waitForAbsence(t, "map-1", "rainfall_climate")

	state := s.engine.Desired("map-1")
	for _, vd := range state.Descriptors {
		require.NotEqual(t, overlay.CategoryClimate, vd.Descriptor.Category,
			"the evicted raster must be garbage-collected from the desired set")
	}
}

func TestZOrderIsStableAcrossToggles(t *testing.T) {
	s := newEngineStack(t)

	require.NoError(t, s.engine.SetCountry("map-1", "thailand"))
	require.NoError(t, s.engine.SetOverlay("map-1", overlay.Descriptor{
		Category: overlay.CategoryClimate, Name: "rainfall", Opacity: 80, Visible: true,
	}))
	require.NoError(t, s.engine.SetOverlay("map-1", overlay.Descriptor{
		Category: overlay.CategoryEnergy, Name: "solar", Opacity: 100, Visible: true,
	}))
	s.waitForLayer(t, "map-1", "rainfall_climate")
	s.waitForLayer(t, "map-1", "solar_energy")

	require.NoError(t, s.engine.SetVisibility("map-1", overlay.CategoryClimate, false))
	require.NoError(t, s.engine.SetVisibility("map-1", overlay.CategoryClimate, true))

	require.Eventually(t, func() bool {
		return len(s.engine.Desired("map-1").Descriptors) == 2
	}, 2*time.Second, 5*time.Millisecond)

	bands := map[overlay.Category]int{}
	for _, l := range s.engine.Layers("map-1") {
		bands[l.Category] = l.ZIndex
	}
	require.Equal(t, overlay.ZBandRaster, bands[overlay.CategoryClimate])
	require.Equal(t, overlay.ZBandBoundary, bands[overlay.CategoryBoundary])
	require.Equal(t, overlay.ZBandMask, bands[overlay.CategoryMask])
	require.Equal(t, overlay.ZBandEnergy, bands[overlay.CategoryEnergy])
}

func TestHitResolutionThroughEngine(t *testing.T) {
	s := newEngineStack(t)

	require.NoError(t, s.engine.SetCountry("map-1", "thailand"))
	require.NoError(t, s.engine.SetOverlay("map-1", overlay.Descriptor{
		Category: overlay.CategoryEnergy, Name: "solar", Opacity: 100, Visible: true,
	}))
	s.waitForLayer(t, "map-1", "solar_energy")
	s.waitForLayer(t, "map-1", "thailand_boundary")

	hit := s.engine.Hit("map-1", overlay.Pixel{X: 100, Y: 15})
	require.NotNil(t, hit)
	require.Equal(t, overlay.CategoryEnergy, hit.Category, "energy markers outrank the boundary under the cursor")

	hit = s.engine.Hit("map-1", overlay.Pixel{X: 98, Y: 6})
	require.NotNil(t, hit)
	require.Equal(t, overlay.CategoryBoundary, hit.Category)
	require.Equal(t, "Thailand", hit.Attributes["NAME_1"])

	require.Nil(t, s.engine.Hit("map-1", overlay.Pixel{X: 150, Y: 60}))
	require.Nil(t, s.engine.Hover("map-1"))
}
