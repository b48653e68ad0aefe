// Package metrics exposes Prometheus metrics for confidence queries and
// recommendation sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ric"

// Result label values shared by queries and steps. Failures use the storage
// error kind ("unavailable", "timeout", ...).
const (
	ResultOK    = "ok"
	ResultEmpty = "empty"
)

// Metrics holds collectors registered on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	confidenceQueries  *prometheus.CounterVec
	confidenceDuration *prometheus.HistogramVec
	sessionSteps       *prometheus.CounterVec
	activeSessions     prometheus.Gauge
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		confidenceQueries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confidence_queries_total",
			Help:      "Confidence score queries by store backend and result",
		}, []string{"store", "result"}),

		confidenceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confidence_query_duration_seconds",
			Help:      "Latency of confidence score queries",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"store"}),

		sessionSteps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_steps_total",
			Help:      "Recommender steps by result",
		}, []string{"result"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently open on the server",
		}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveConfidenceQuery records one store query.
func (m *Metrics) ObserveConfidenceQuery(store, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.confidenceQueries.WithLabelValues(store, result).Inc()
	m.confidenceDuration.WithLabelValues(store).Observe(elapsed.Seconds())
}

// ObserveStep records one recommender step.
func (m *Metrics) ObserveStep(result string) {
	if m == nil {
		return
	}
	m.sessionSteps.WithLabelValues(result).Inc()
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}
