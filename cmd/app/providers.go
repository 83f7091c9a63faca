package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valkey-io/valkey-go"

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

func provideMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	return registry
}

func provideEngineConfig(cfg *config.Config) overlay.EngineConfig {
	return overlay.EngineConfig{
		MaxMapViews:      cfg.Engine.MaxMapViews,
		RemoveAckTimeout: cfg.Engine.RemoveAckTimeout,
		DedupTTL:         cfg.Engine.DedupTTL,
	}
}

func provideCatalogConfig(cfg *config.Config) catalog.Config {
	return catalog.Config{CacheTTL: cfg.Catalog.CacheTTL}
}

func provideCatalogRepository(cfg *config.Config, logger *slog.Logger) catalog.Repository {
	fallback := catalogrepo.NewMemoryRepository()
	dsn := strings.TrimSpace(cfg.Catalog.Postgres.DSN)
	if dsn == "" {
		logger.Info("catalog postgres dsn not set, using memory repository")
		return fallback
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory repository", "error", err)
		return fallback
	}
	if cfg.Catalog.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Catalog.Postgres.MaxConns
	}
	if cfg.Catalog.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Catalog.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repository", "error", err)
		return fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repository", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("catalog postgres repository enabled")
	return catalogrepo.NewPostgresRepository(pool)
}

func provideCatalogStore(cfg *config.Config, logger *slog.Logger) catalog.Store {
	if cfg.Catalog.Valkey.Enabled {
		opt, err := buildValkeyOptions(cfg)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
			return catalogcache.NewMemoryStore()
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory store", "error", err)
			return catalogcache.NewMemoryStore()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory store", "error", err)
		} else {
			logger.Info("catalog valkey store enabled", "addr", cfg.Catalog.Valkey.Addr)
			return catalogcache.NewValkeyStore(client, "catalog")
		}
	}
	return catalogcache.NewMemoryStore()
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.Catalog.Valkey.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.Catalog.Valkey.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.Catalog.Valkey.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}

// provideResourceCache assembles the raw metadata source and mask fetcher and
// wraps both behind the coalescing resource cache.
func provideResourceCache(cfg *config.Config, catalogSvc catalog.Service, logger *slog.Logger) *rescache.Cache {
	var source overlay.Source
	if base := strings.TrimSpace(cfg.Metadata.BaseURL); base != "" {
		logger.Info("metadata served over http", "baseUrl", base)
		source = metadata.NewClient(base, cfg.Metadata.Timeout)
	} else {
		logger.Info("metadata served from in-process catalog")
		source = metadata.NewLocalSource(catalogSvc)
	}

	var objects maskstore.ObjectStore
	if endpoint := strings.TrimSpace(cfg.MaskStore.Endpoint); endpoint != "" {
		store, err := maskstore.NewMinioStore(endpoint, cfg.MaskStore.AccessKey, cfg.MaskStore.SecretKey, cfg.MaskStore.Bucket, cfg.MaskStore.Region, logger)
		if err != nil {
			logger.Error("failed to initialize mask object store, falling back to memory store", "error", err)
			objects = maskstore.NewMemoryStore()
		} else {
			logger.Info("mask object store enabled", "endpoint", endpoint, "bucket", cfg.MaskStore.Bucket)
			objects = store
		}
	} else {
		objects = maskstore.NewMemoryStore()
	}

	return rescache.New(source, maskstore.NewFetcher(objects), logger)
}

func provideMaskSynthesizer(cache *rescache.Cache, logger *slog.Logger) *overlay.MaskSynthesizer {
	return overlay.NewMaskSynthesizer(cache, logger)
}

func provideRenderer() *renderer.Headless {
	return renderer.NewHeadless()
}
