package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provider request metrics
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_finder_provider_requests_total",
			Help: "Total number of outbound search provider requests",
		},
		[]string{"provider", "status"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_finder_provider_latency_seconds",
			Help:    "Outbound search provider request latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
		[]string{"provider"},
	)

	// Finder metrics
	QueryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_finder_query_attempts_total",
			Help: "Total number of planned query attempts issued",
		},
		[]string{"tier", "outcome"},
	)

	FindRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_finder_find_requests_total",
			Help: "Total number of find-sources calls",
		},
		[]string{"outcome"},
	)

	FindResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "source_finder_results_per_request",
			Help:    "Number of unique sources returned per request",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
		},
	)
)

// Status labels
const (
	StatusOK    = "ok"
	StatusError = "error"
)
