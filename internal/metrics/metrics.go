// Package metrics holds the Prometheus collectors for claim queries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whsper_queries_total",
		Help: "Claim queries served, by operation.",
	}, []string{"operation"})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "whsper_query_duration_seconds",
		Help:    "Claim query latency, by operation.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"operation"})

	DanglingIndexEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whsper_dangling_index_entries_total",
		Help: "Index entries skipped because no claim record exists for the id.",
	}, []string{"index"})

	ScannedIndexEntries = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "whsper_scanned_index_entries",
		Help:    "Index ids visited to fill one page.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 1000, 5000},
	}, []string{"index"})
)
