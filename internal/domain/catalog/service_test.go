package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/escapdev/overlaysync/pkg/errors"
)

type stubRepository struct {
	layers    map[string]CountryLayers
	countries []string
	calls     int
	err       error
}

func (r *stubRepository) CountryLayers(_ context.Context, country string) (CountryLayers, bool, error) {
	r.calls++
	if r.err != nil {
		return CountryLayers{}, false, r.err
	}
	layers, ok := r.layers[country]
	return layers, ok, nil
}

func (r *stubRepository) Countries(context.Context) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.countries, nil
}

type stubStore struct {
	entries map[string]CountryLayers
	getErr  error
	setErr  error
}

func newStubStore() *stubStore {
	return &stubStore{entries: make(map[string]CountryLayers)}
}

func (s *stubStore) Get(_ context.Context, country string) (CountryLayers, bool, error) {
	if s.getErr != nil {
		return CountryLayers{}, false, s.getErr
	}
	layers, ok := s.entries[country]
	return layers, ok, nil
}

func (s *stubStore) Set(_ context.Context, country string, layers CountryLayers, _ time.Duration) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.entries[country] = layers
	return nil
}

func (s *stubStore) Invalidate(_ context.Context, country string) error {
	delete(s.entries, country)
	return nil
}

func newTestService(repo *stubRepository, store *stubStore) Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(Config{CacheTTL: time.Minute}, repo, store, logger)
}

func TestCountryLayersCachesAssembledList(t *testing.T) {
	repo := &stubRepository{layers: map[string]CountryLayers{
		"thailand": {Country: "thailand", Climate: []ClimateLayer{{Variable: "rainfall"}}},
	}}
	store := newStubStore()
	svc := newTestService(repo, store)

	first, err := svc.CountryLayers(context.Background(), "Thailand")
	require.NoError(t, err)
	require.Len(t, first.Climate, 1)
	require.Equal(t, 1, repo.calls)

	second, err := svc.CountryLayers(context.Background(), "  THAILAND ")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, repo.calls, "cached reads must not hit the repository")
}

func TestCountryLayersUnknownCountry(t *testing.T) {
	svc := newTestService(&stubRepository{layers: map[string]CountryLayers{}}, newStubStore())

	_, err := svc.CountryLayers(context.Background(), "atlantis")
	require.Equal(t, "no_matching_resource", apperrors.CodeOf(err))
}

func TestCountryLayersEmptyCountry(t *testing.T) {
	svc := newTestService(&stubRepository{}, newStubStore())

	_, err := svc.CountryLayers(context.Background(), "  ")
	require.Equal(t, "invalid_input", apperrors.CodeOf(err))
}

func TestCountryLayersRepositoryFailure(t *testing.T) {
	svc := newTestService(&stubRepository{err: errors.New("connection refused")}, newStubStore())

	_, err := svc.CountryLayers(context.Background(), "thailand")
	require.Equal(t, "fetch_failed", apperrors.CodeOf(err))
}

func TestCountryLayersToleratesCacheFailures(t *testing.T) {
	repo := &stubRepository{layers: map[string]CountryLayers{"thailand": {Country: "thailand"}}}
	store := newStubStore()
	store.getErr = errors.New("cache down")
	store.setErr = errors.New("cache down")
	svc := newTestService(repo, store)

	layers, err := svc.CountryLayers(context.Background(), "thailand")
	require.NoError(t, err, "a broken cache degrades to repository reads")
	require.Equal(t, "thailand", layers.Country)
}

func TestInvalidateDropsCachedEntry(t *testing.T) {
	repo := &stubRepository{layers: map[string]CountryLayers{"thailand": {Country: "thailand"}}}
	store := newStubStore()
	svc := newTestService(repo, store)

	_, err := svc.CountryLayers(context.Background(), "thailand")
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)

	require.NoError(t, svc.Invalidate(context.Background(), "thailand"))
	_, err = svc.CountryLayers(context.Background(), "thailand")
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestCountries(t *testing.T) {
	repo := &stubRepository{countries: []string{"thailand", "vietnam"}}
	svc := newTestService(repo, newStubStore())

	countries, err := svc.Countries(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"thailand", "vietnam"}, countries)
}
