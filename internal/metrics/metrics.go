// Package metrics defines the server's Prometheus collectors and an
// instrumented document store. A nil *Metrics is a no-op everywhere so stdio
// mode and tests can skip the registry entirely.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	operationsTotal    *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	generationTokens   *prometheus.CounterVec
	storeOpDuration    *prometheus.HistogramVec
	scenesInvalidated  *prometheus.CounterVec
}

// New builds a registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		operationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loreweave_operations_total",
			Help: "Service operations by name and status.",
		}, []string{"op", "status"}),
		generationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loreweave_generation_duration_seconds",
			Help:    "Generation step latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"step", "provider"}),
		generationTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loreweave_generation_tokens",
			Help: "LLM tokens consumed, split by prompt and completion.",
		}, []string{"step", "kind"}),
		storeOpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loreweave_store_operation_duration_seconds",
			Help:    "Document store operation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"driver", "op"}),
		scenesInvalidated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loreweave_scenes_invalidated_total",
			Help: "Scenes marked needs_regen by unlock and edit cascades.",
		}, []string{"cause"}),
	}
}

// Handler serves the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordOperation counts one service operation.
func (m *Metrics) RecordOperation(op, status string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(op, status).Inc()
}

// RecordGeneration observes one generation step's duration.
func (m *Metrics) RecordGeneration(step, provider string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generationDuration.WithLabelValues(step, provider).Observe(elapsed.Seconds())
}

// RecordTokens counts prompt or completion tokens for a step.
func (m *Metrics) RecordTokens(step, kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.generationTokens.WithLabelValues(step, kind).Add(float64(n))
}

// RecordStoreOp observes one store operation's duration.
func (m *Metrics) RecordStoreOp(driver, op string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.storeOpDuration.WithLabelValues(driver, op).Observe(elapsed.Seconds())
}

// RecordInvalidated counts scenes flipped to needs_regen by a cascade.
func (m *Metrics) RecordInvalidated(cause string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.scenesInvalidated.WithLabelValues(cause).Add(float64(n))
}
