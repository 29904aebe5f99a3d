package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_queries_completed_total",
			Help: "Total number of insight queries answered by the live service",
		},
		[]string{"query_key"},
	)

	QueriesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_queries_failed_total",
			Help: "Total number of insight queries that failed",
		},
		[]string{"query_key", "error_code"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insight_query_duration_seconds",
			Help:    "End-to-end duration of insight queries in seconds",
			Buckets: []float64{5, 15, 30, 45, 60, 90, 120, 180},
		},
		[]string{"query_key"},
	)

	PollAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insight_poll_attempts",
			Help:    "Status polls needed before a submission reached a terminal state",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 30},
		},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_cache_requests_total",
			Help: "Cache layer outcomes: hit, miss, stale, file, demo",
		},
		[]string{"outcome"},
	)
)
