package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/escapdev/overlaysync/internal/domain/catalog"
	"github.com/escapdev/overlaysync/internal/domain/overlay"
	"github.com/escapdev/overlaysync/internal/infra/catalogcache"
	"github.com/escapdev/overlaysync/internal/infra/catalogrepo"
	"github.com/escapdev/overlaysync/internal/infra/config"
	"github.com/escapdev/overlaysync/internal/infra/maskstore"
	"github.com/escapdev/overlaysync/internal/infra/metadata"
	"github.com/escapdev/overlaysync/internal/infra/renderer"
	"github.com/escapdev/overlaysync/internal/infra/rescache"
	"github.com/escapdev/overlaysync/pkg/metrics"
)

type routerFixture struct {
	handler http.Handler
}

func (f *routerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, req)
	return recorder
}

func seedThailand(repo *catalogrepo.MemoryRepository) {
	boundaryFC := geojson.NewFeatureCollection()
	boundary := geojson.NewFeature(orb.Polygon{{{97, 5}, {106, 5}, {106, 21}, {97, 21}, {97, 5}}})
	boundary.Properties = geojson.Properties{"NAME_1": "Thailand"}
	boundaryFC.Append(boundary)

	energyFC := geojson.NewFeatureCollection()
	plant := geojson.NewFeature(orb.Point{100, 15})
	plant.Properties = geojson.Properties{"capacity_mw": 120.0}
	energyFC.Append(plant)

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
			Features:       boundaryFC,
		}},
	})
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo := catalogrepo.NewMemoryRepository()
	seedThailand(repo)
	catalogSvc := catalog.NewService(catalog.Config{CacheTTL: time.Minute}, repo, catalogcache.NewMemoryStore(), logger)

	cache := rescache.New(metadata.NewLocalSource(catalogSvc), maskstore.NewFetcher(maskstore.NewMemoryStore()), logger)
	engine := overlay.NewEngine(
		overlay.EngineConfig{RemoveAckTimeout: 5 * time.Millisecond},
		overlay.NewStore(), overlay.NewRegistry(), renderer.NewHeadless(),
		cache, overlay.NewMaskSynthesizer(cache, logger), overlay.NewEventBus(), logger,
	)
	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)
	t.Cleanup(func() {
		cancel()
		engine.Stop()
	})

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	cfg := &config.Config{HTTP: config.HTTPConfig{Address: ":0"}}
	server := NewRouter(cfg, NewHandler(engine, catalogSvc, logger), registry)
	return &routerFixture{handler: server.Handler}
}

func (f *routerFixture) eventuallyHasLayer(t *testing.T, mapID, identityKey string) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec := f.do(t, http.MethodGet, "/api/v1/maps/"+mapID+"/layers", "")
		if rec.Code != http.StatusOK {
			return false
		}
		var payload struct {
			Layers []overlay.RenderedLayer `json:"layers"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			return false
		}
		for _, l := range payload.Layers {
			if l.IdentityKey == identityKey {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func decodeErrorBody(t *testing.T, body []byte) map[string]map[string]any {
	t.Helper()
	var payload map[string]map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload
}

func TestRouter_SetOverlayAccepted(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/maps/map-1/country", `{"country":"thailand"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/v1/maps/map-1/overlays/climate",
		`{"name":"rainfall","scenario":"ssp245","opacity":80}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	f.eventuallyHasLayer(t, "map-1", "rainfall_climate")
	f.eventuallyHasLayer(t, "map-1", "thailand_boundary")
	f.eventuallyHasLayer(t, "map-1", "thailand_mask")

	rec = f.do(t, http.MethodGet, "/api/v1/maps/map-1/legend", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var legend overlay.LegendSpec
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &legend))
	require.Equal(t, "Rainfall", legend.Title)
}

func TestRouter_SetOverlayUnknownCategory(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/maps/map-1/overlays/volcano", `{"name":"lava"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
}

func TestRouter_SetOverlayMissingName(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/maps/map-1/overlays/climate", `{"opacity":80}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_MutateAbsentOverlay(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPatch, "/api/v1/maps/map-1/overlays/climate", `{"opacity":40}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/v1/maps/map-1/overlays/climate", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_RemoveAbsentOverlay(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodDelete, "/api/v1/maps/map-1/overlays/energy", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_OverlayLifecycle(t *testing.T) {
	f := newRouterFixture(t)

	require.Equal(t, http.StatusAccepted,
		f.do(t, http.MethodPut, "/api/v1/maps/map-1/country", `{"country":"thailand"}`).Code)
	require.Equal(t, http.StatusAccepted,
		f.do(t, http.MethodPut, "/api/v1/maps/map-1/overlays/energy", `{"name":"solar"}`).Code)
	f.eventuallyHasLayer(t, "map-1", "solar_energy")

	rec := f.do(t, http.MethodPatch, "/api/v1/maps/map-1/overlays/energy", `{"opacity":30,"visible":false}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/maps/map-1/overlays/energy", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		rec := f.do(t, http.MethodGet, "/api/v1/maps/map-1/overlays", "")
		var payload struct {
			Overlays []overlay.Descriptor `json:"overlays"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		return len(payload.Overlays) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRouter_HitTest(t *testing.T) {
	f := newRouterFixture(t)

	require.Equal(t, http.StatusAccepted,
		f.do(t, http.MethodPut, "/api/v1/maps/map-1/country", `{"country":"thailand"}`).Code)
	require.Equal(t, http.StatusAccepted,
		f.do(t, http.MethodPut, "/api/v1/maps/map-1/overlays/energy", `{"name":"solar"}`).Code)
	f.eventuallyHasLayer(t, "map-1", "solar_energy")

	rec := f.do(t, http.MethodPost, "/api/v1/maps/map-1/hittest", `{"x":100,"y":15}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Hit    bool              `json:"hit"`
		Result overlay.HitResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.True(t, payload.Hit)
	require.Equal(t, overlay.CategoryEnergy, payload.Result.Category)

	rec = f.do(t, http.MethodPost, "/api/v1/maps/map-1/hittest", `{"x":150,"y":60}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.False(t, payload.Hit)
}

func TestRouter_Catalog(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/catalog/thailand", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var layers catalog.CountryLayers
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &layers))
	require.Len(t, layers.Climate, 1)

	rec = f.do(t, http.MethodGet, "/api/v1/catalog/atlantis", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var countries struct {
		Countries []string `json:"countries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &countries))
	require.Equal(t, []string{"thailand"}, countries.Countries)

	rec = f.do(t, http.MethodPost, "/api/v1/catalog/thailand/invalidate", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_LegendWithoutActiveRaster(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/maps/map-1/legend", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	f := newRouterFixture(t)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "").Code)
	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "overlaysync_")
}

func TestRouter_CORSPreflight(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodOptions, "/api/v1/catalog", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
