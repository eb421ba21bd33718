package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rockladyeagles/polarmodel/internal/agents"
)

// Run modes and statuses used as label values.
const (
	ModeSingle = "single"
	ModeSweep  = "sweep"

	StatusOK        = "ok"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Interaction counts one activation. Registry is an engine observer.
func (r *Registry) Interaction(out agents.Outcome) {
	if int(out) < len(r.interactions) {
		r.interactions[out].Inc()
	}
}

// StepCollected counts a step and records its dispersion.
func (r *Registry) StepCollected(step int, dispersion float64) {
	r.StepsTotal.Inc()
	r.Dispersion.Set(dispersion)
}

// RecordGraph records how many draws a run's graph took.
func (r *Registry) RecordGraph(attempts int) {
	r.GraphAttempts.Observe(float64(attempts))
}

// RecordRun records a finished run
func (r *Registry) RecordRun(mode, status string, duration time.Duration) {
	r.RunsTotal.WithLabelValues(mode, status).Inc()
	r.RunDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordHTTPRequest records a served HTTP request
func (r *Registry) RecordHTTPRequest(path string, status int) {
	r.HTTPRequestsTotal.WithLabelValues(path, fmt.Sprint(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry to path for the node exporter textfile
// collector.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
