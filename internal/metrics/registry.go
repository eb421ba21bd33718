// Package metrics exposes simulation and server counters to Prometheus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rockladyeagles/polarmodel/internal/agents"
)

// Registry holds all metrics for the application
type Registry struct {
	// Simulation Metrics
	StepsTotal        prometheus.Counter
	InteractionsTotal *prometheus.CounterVec
	Dispersion        prometheus.Gauge
	GraphAttempts     prometheus.Histogram

	// Run Metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	// HTTP Metrics
	HTTPRequestsTotal *prometheus.CounterVec

	// one counter per outcome, resolved once
	interactions [agents.NumOutcomes]prometheus.Counter

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	r := &Registry{
		registry: reg,
	}

	r.initSimulationMetrics()
	r.initRunMetrics()
	r.initHTTPMetrics()

	return r
}

func (r *Registry) initSimulationMetrics() {
	r.StepsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "polarsim_steps_total",
			Help: "Total number of simulation steps executed",
		},
	)

	r.InteractionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "polarsim_interactions_total",
			Help: "Total number of agent activations by outcome",
		},
		[]string{"outcome"}, // persuaded, rejected, isolated
	)
	for _, out := range []agents.Outcome{agents.Isolated, agents.Rejected, agents.Persuaded} {
		r.interactions[out] = r.InteractionsTotal.WithLabelValues(out.String())
	}

	r.Dispersion = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "polarsim_dispersion",
			Help: "Pooled opinion variance at the most recent collection",
		},
	)

	r.GraphAttempts = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "polarsim_graph_attempts",
			Help:    "Random graph draws needed to obtain a connected graph",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 100, 1000},
		},
	)
}

func (r *Registry) initRunMetrics() {
	r.RunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "polarsim_runs_total",
			Help: "Total number of simulation runs",
		},
		[]string{"mode", "status"}, // single|sweep, ok|failed|cancelled
	)

	r.RunDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polarsim_run_duration_seconds",
			Help:    "Wall time of one simulation run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"mode"},
	)
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "polarsim_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "status"},
	)
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
