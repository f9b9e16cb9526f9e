// Package metrics exposes the prometheus instruments of the resolution
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mercato",
		Name:      "graphql_request_duration_seconds",
		Help:      "End to end latency of graphql requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	BatchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mercato",
		Name:      "dataloader_batch_size",
		Help:      "Number of unique keys per dispatched loader batch.",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
	}, []string{"loader"})

	ResponseCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mercato",
		Name:      "response_cache_requests_total",
		Help:      "Response cache lookups partitioned by result.",
	}, []string{"result"})

	PersistedQueryLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mercato",
		Name:      "persisted_query_lookups_total",
		Help:      "Persisted query resolutions partitioned by result.",
	}, []string{"result"})

	ShapeRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mercato",
		Name:      "shape_rejections_total",
		Help:      "Queries rejected by the static shape guard.",
	})
)
