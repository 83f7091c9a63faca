package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/escapdev/overlaysync/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, registry *prometheus.Registry) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		errorHandlingMiddleware(handler.logger),
		corsMiddleware(cfg.HTTP.CORSOrigins),
		rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		maps := api.Group("/maps/:mapId")
		{
			maps.PUT("/overlays", handler.ReplaceOverlays)
			maps.GET("/overlays", handler.DesiredState)
			maps.PUT("/overlays/:category", handler.SetOverlay)
			maps.PATCH("/overlays/:category", handler.MutateOverlay)
			maps.DELETE("/overlays/:category", handler.RemoveOverlay)
			maps.PUT("/country", handler.SetCountry)
			maps.GET("/layers", handler.Layers)
			maps.GET("/legend", handler.Legend)
			maps.POST("/hittest", handler.HitTest)
			maps.GET("/events", handler.Events)
		}

		api.GET("/catalog", handler.Countries)
		api.GET("/catalog/:country", handler.CountryLayers)
		api.POST("/catalog/:country/invalidate", handler.InvalidateCountry)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}
