// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelMethod  = "method"
	LabelPath    = "path"
	LabelStatus  = "status"
	LabelOutcome = "outcome"
	LabelResult  = "result"
)

// HTTPLatencyBuckets covers fast local handlers up to slow provider round trips.
var HTTPLatencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountlink_http_requests_total",
			Help: "HTTP requests by method, route pattern and status",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accountlink_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern",
			Buckets: HTTPLatencyBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "accountlink_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)
)

// Link flow metrics
var (
	LinkRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountlink_link_requests_total",
			Help: "Link requests by result",
		},
		[]string{LabelResult},
	)

	CallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountlink_callbacks_total",
			Help: "OAuth callbacks by outcome (success or error code)",
		},
		[]string{LabelOutcome},
	)

	StatesSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "accountlink_states_swept_total",
			Help: "Expired link states removed by the sweeper",
		},
	)
)

// RecordSweep adds a sweeper cycle's removals.
func RecordSweep(removed int64) {
	if removed > 0 {
		StatesSweptTotal.Add(float64(removed))
	}
}
