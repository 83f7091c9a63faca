package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ResourceCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "overlaysync_resource_cache_hits_total",
		Help: "Total resource cache hits served without a network fetch",
	})
	ResourceCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "overlaysync_resource_cache_misses_total",
		Help: "Total resource cache misses that started a new fetch",
	})
	ResourceCacheCoalescedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "overlaysync_resource_cache_coalesced_total",
		Help: "Total callers attached to an already in-flight fetch",
	})
	ResourceFetchFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overlaysync_resource_fetch_failures_total",
		Help: "Total failed resource fetches by kind",
	}, []string{"kind"})
	ReconcileTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overlaysync_reconcile_transitions_total",
		Help: "Total reconciler state transitions by target state",
	}, []string{"state"})
	ActionsSuppressedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "overlaysync_actions_suppressed_total",
		Help: "Total duplicate opacity/visibility mutations suppressed",
	})
	ActiveLayers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "overlaysync_active_layers",
		Help: "Rendered layers currently registered, by category",
	}, []string{"category"})
	CatalogCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "overlaysync_catalog_cache_hits_total",
		Help: "Total catalog layer-list cache hits",
	})
	CatalogCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "overlaysync_catalog_cache_misses_total",
		Help: "Total catalog layer-list cache misses",
	})
	MetadataRequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "overlaysync_metadata_request_duration_ms",
		Help:    "Metadata service call duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000},
	})
)

// Register installs every collector on the given registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		ResourceCacheHitsTotal,
		ResourceCacheMissesTotal,
		ResourceCacheCoalescedTotal,
		ResourceFetchFailuresTotal,
		ReconcileTransitionsTotal,
		ActionsSuppressedTotal,
		ActiveLayers,
		CatalogCacheHitsTotal,
		CatalogCacheMissesTotal,
		MetadataRequestDurationMs,
	)
}
