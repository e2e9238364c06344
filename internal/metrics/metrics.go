// Package metrics defines the Prometheus instrumentation for Conversa:
// request counters and latencies, live SSE connection counts, and delivery
// outcomes from the fan-out path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversa_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conversa_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversa_users_registered_total",
			Help: "Total users registered",
		},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversa_messages_sent_total",
			Help: "Total messages persisted and fanned out",
		},
	)

	// LiveConnections tracks the current number of open SSE streams.
	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conversa_sse_connections",
			Help: "Current number of live SSE subscribers",
		},
	)

	// DeliveriesTotal counts per-recipient fan-out outcomes:
	// "delivered", "offline", or "dropped" (subscriber queue full).
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversa_deliveries_total",
			Help: "Per-recipient delivery outcomes",
		},
		[]string{"result"},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversa_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
