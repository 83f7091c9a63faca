package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/escapdev/overlaysync/pkg/errors"
	"github.com/escapdev/overlaysync/pkg/metrics"
)

// Config controls catalog caching behavior.
type Config struct {
	CacheTTL time.Duration
}

// Service assembles and caches per-country layer lists.
type Service interface {
	CountryLayers(ctx context.Context, country string) (CountryLayers, error)
	Countries(ctx context.Context) ([]string, error)
	Invalidate(ctx context.Context, country string) error
}

type service struct {
	cfg    Config
	repo   Repository
	store  Store
	logger *slog.Logger
}

// NewService wires up the catalog domain.
func NewService(cfg Config, repo Repository, store Store, logger *slog.Logger) Service {
	return &service{
		cfg:    cfg,
		repo:   repo,
		store:  store,
		logger: logger.With("component", "catalog.service"),
	}
}

func (s *service) CountryLayers(ctx context.Context, country string) (CountryLayers, error) {
	country = normalizeCountry(country)
	if country == "" {
		return CountryLayers{}, apperrors.Wrap("invalid_input", "country cannot be empty", nil)
	}

	if cached, ok, err := s.store.Get(ctx, country); err == nil && ok {
		metrics.CatalogCacheHitsTotal.Inc()
		return cached, nil
	} else if err != nil {
		s.logger.Warn("catalog cache read failed", "country", country, "error", err)
	}
	metrics.CatalogCacheMissesTotal.Inc()

	layers, found, err := s.repo.CountryLayers(ctx, country)
	if err != nil {
		return CountryLayers{}, apperrors.Wrap("fetch_failed",
			fmt.Sprintf("load layers for %q", country), err)
	}
	if !found {
		return CountryLayers{}, apperrors.Wrap("no_matching_resource",
			fmt.Sprintf("no layers for country %q", country), nil)
	}

	if err := s.store.Set(ctx, country, layers, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("catalog cache write failed", "country", country, "error", err)
	}
	return layers, nil
}

func (s *service) Countries(ctx context.Context) ([]string, error) {
	countries, err := s.repo.Countries(ctx)
	if err != nil {
		return nil, apperrors.Wrap("fetch_failed", "list countries", err)
	}
	return countries, nil
}

func (s *service) Invalidate(ctx context.Context, country string) error {
	country = normalizeCountry(country)
	if country == "" {
		return apperrors.Wrap("invalid_input", "country cannot be empty", nil)
	}
	if err := s.store.Invalidate(ctx, country); err != nil {
		return apperrors.Wrap("fetch_failed", fmt.Sprintf("invalidate %q", country), err)
	}
	s.logger.Info("catalog cache invalidated", "country", country)
	return nil
}

func normalizeCountry(country string) string {
	return strings.ToLower(strings.TrimSpace(country))
}
