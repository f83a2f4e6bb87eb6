// Package metrics declares the Prometheus collectors exported on /metrics.
//
// Backend client metrics:
//   - backend_requests_total{endpoint,outcome}: outcome is ok, client_error, server_error, transport_error or rejected
//   - backend_request_duration_seconds{endpoint}
//   - backend_coalesced_requests_total{endpoint}: GETs answered by an identical in-flight request
//   - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
//
// Search coordinator metrics:
//   - search_fetches_total{kind}: kind is filters or movies
//   - search_stale_responses_total: responses discarded because a newer request was issued
//   - search_active_sessions: coordinators currently held by the registry
//
// Web metrics:
//   - http_requests_total{route,method,status}
//   - http_request_duration_seconds{route}
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Requests sent to the recommendation backend",
		},
		[]string{"endpoint", "outcome"},
	)

	BackendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Backend request latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	BackendCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_coalesced_requests_total",
			Help: "GET requests served by an identical in-flight request",
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	SearchFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_fetches_total",
			Help: "Fetches issued by search coordinators",
		},
		[]string{"kind"},
	)

	SearchStaleResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_stale_responses_total",
			Help: "Search responses discarded because a newer request superseded them",
		},
	)

	SearchActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "search_active_sessions",
			Help: "Search coordinators currently held in memory",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"route", "method", "status"},
	)

	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)
