package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the client-side counters. Each Metrics owns its registry so
// separate clients (and tests) never share series.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	SessionRefreshes  *prometheus.CounterVec
	RequestsQueued    prometheus.Counter
	RequestsReplayed  *prometheus.CounterVec
	StoreErrorsByKind *prometheus.CounterVec
}

// NewMetrics registers the client metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "climdo_requests_total",
				Help: "Total number of API requests sent, by method and status",
			},
			[]string{"method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "climdo_request_duration_seconds",
				Help:    "API request latency in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15},
			},
			[]string{"method"},
		),
		SessionRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "climdo_session_refreshes_total",
				Help: "Session refresh attempts, by result",
			},
			[]string{"result"},
		),
		RequestsQueued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "climdo_requests_queued_total",
				Help: "Requests parked while a session refresh was in flight",
			},
		),
		RequestsReplayed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "climdo_requests_replayed_total",
				Help: "Queued requests re-issued after a refresh, by outcome",
			},
			[]string{"outcome"},
		),
		StoreErrorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "climdo_store_errors_total",
				Help: "Entity store operation failures, by store and error kind",
			},
			[]string{"store", "kind"},
		),
	}
	m.Registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.SessionRefreshes,
		m.RequestsQueued,
		m.RequestsReplayed,
		m.StoreErrorsByKind,
	)
	return m
}
