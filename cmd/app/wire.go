//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/escapdev/overlaysync/internal/bootstrap"
	"github.com/escapdev/overlaysync/internal/domain/catalog"
	"github.com/escapdev/overlaysync/internal/domain/overlay"
	"github.com/escapdev/overlaysync/internal/infra/config"
	"github.com/escapdev/overlaysync/internal/infra/renderer"
	"github.com/escapdev/overlaysync/internal/infra/rescache"
	httpiface "github.com/escapdev/overlaysync/internal/interface/http"
	"github.com/escapdev/overlaysync/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideMetricsRegistry,
		provideCatalogConfig,
		provideCatalogRepository,
		provideCatalogStore,
		catalog.NewService,
		provideEngineConfig,
		provideResourceCache,
		provideMaskSynthesizer,
		provideRenderer,
		overlay.NewStore,
		overlay.NewRegistry,
		overlay.NewEventBus,
		overlay.NewEngine,
		wire.Bind(new(overlay.Source), new(*rescache.Cache)),
		wire.Bind(new(overlay.Renderer), new(*renderer.Headless)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
