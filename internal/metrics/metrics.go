package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LocalityUpsertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "titling_locality_upserts_total",
		Help: "Catalogue upserts by type and outcome (created, existing, error)",
	}, []string{"type", "outcome"})
	LocalitySearchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "titling_locality_searches_total",
		Help: "Autocomplete queries by type",
	}, []string{"type"})
	LocalitySearchCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "titling_locality_search_cache_total",
		Help: "Autocomplete cache lookups by result (hit, miss, error)",
	}, []string{"result"})
	LocalitySearchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "titling_locality_search_duration_ms",
		Help:    "Autocomplete query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	BoundaryChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "titling_boundary_checks_total",
		Help: "Boundary containment checks by outcome (inside, outside, invalid, unavailable, error)",
	}, []string{"outcome"})
	NormalizerRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "titling_normalizer_records_total",
		Help: "Records seen by the locality normalizer by source and result (converted, skipped, failed)",
	}, []string{"source", "result"})
)

func init() {
	prometheus.MustRegister(LocalityUpsertsTotal)
	prometheus.MustRegister(LocalitySearchesTotal)
	prometheus.MustRegister(LocalitySearchCacheTotal)
	prometheus.MustRegister(LocalitySearchDurationMs)
	prometheus.MustRegister(BoundaryChecksTotal)
	prometheus.MustRegister(NormalizerRecordsTotal)
}

// Handler exposes the registered metrics for scraping.
func Handler() http.Handler { return promhttp.Handler() }
