// Package metrics exports Prometheus collectors for the triage pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "triage"

// Metrics holds the pipeline collectors and the registry they are registered in.
// Record methods are no-ops on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	indexLoads      *prometheus.CounterVec
	parseFailures   prometheus.Counter
	routeOutcomes   *prometheus.CounterVec
	decisionLatency prometheus.Histogram
}

// New creates collectors in registry, or in a fresh registry when nil.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{registry: registry}

	m.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Triage requests by terminal state",
		},
		[]string{"state"},
	)
	m.indexLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "loads_total",
			Help:      "Guideline index load attempts by result",
		},
		[]string{"result"},
	)
	m.parseFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "parse_failures_total",
			Help:      "Model outputs that could not be parsed",
		},
	)
	m.routeOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "outcomes_total",
			Help:      "Dispatch outcomes by route and result",
		},
		[]string{"route", "result"},
	)
	m.decisionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "latency_seconds",
			Help:      "Generative decision call latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	registry.MustRegister(m.requests, m.indexLoads, m.parseFailures, m.routeOutcomes, m.decisionLatency)
	return m
}

// RecordRequest counts a request ending in state.
func (m *Metrics) RecordRequest(state string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(state).Inc()
}

// RecordIndexLoad counts a guideline index load attempt.
func (m *Metrics) RecordIndexLoad(ok bool) {
	if m == nil {
		return
	}
	m.indexLoads.WithLabelValues(result(ok)).Inc()
}

// RecordParseFailure counts an unparseable model output.
func (m *Metrics) RecordParseFailure() {
	if m == nil {
		return
	}
	m.parseFailures.Inc()
}

// RecordRoute counts a dispatch outcome.
func (m *Metrics) RecordRoute(route string, ok bool) {
	if m == nil {
		return
	}
	m.routeOutcomes.WithLabelValues(route, result(ok)).Inc()
}

// ObserveDecision records a generative call duration.
func (m *Metrics) ObserveDecision(seconds float64) {
	if m == nil {
		return
	}
	m.decisionLatency.Observe(seconds)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
