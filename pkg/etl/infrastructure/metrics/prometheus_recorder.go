// Package metrics provides the Prometheus-backed MetricRecorder. Metrics are
// registered on a dedicated registry so a batch run can push or expose them
// without colliding with default collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	model "github.com/ejcourts/predms/pkg/etl/core/domain/model"
	coremetrics "github.com/ejcourts/predms/pkg/etl/core/metrics"
)

// PrometheusRecorder implements metrics.MetricRecorder on Prometheus
// collectors.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	pipelineRuns     *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	stepDuration     *prometheus.HistogramVec
	stepOutcomes     *prometheus.CounterVec
	attempts         *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	r := &PrometheusRecorder{
		registry: registry,
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "predms",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by final status.",
		}, []string{"pipeline", "status"}),
		pipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "predms",
			Name:      "pipeline_duration_seconds",
			Help:      "Wall-clock duration of pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"pipeline"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "predms",
			Name:      "step_duration_seconds",
			Help:      "Wall-clock duration of pipeline steps across attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 10),
		}, []string{"step"}),
		stepOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "predms",
			Name:      "step_outcomes_total",
			Help:      "Step completions by outcome.",
		}, []string{"step", "outcome"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "predms",
			Name:      "step_attempts_total",
			Help:      "Execution attempts by outcome.",
		}, []string{"step", "outcome"}),
	}

	registry.MustRegister(
		r.pipelineRuns,
		r.pipelineDuration,
		r.stepDuration,
		r.stepOutcomes,
		r.attempts,
	)
	return r
}

// Registry exposes the underlying registry for scraping or pushing.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordPipelineStart is a no-op; runs are counted on completion so the
// status label is known.
func (r *PrometheusRecorder) RecordPipelineStart(pipelineName string) {}

// RecordPipelineEnd counts the run and observes its duration.
func (r *PrometheusRecorder) RecordPipelineEnd(pipelineName string, status model.RunStatus, duration time.Duration) {
	r.pipelineRuns.WithLabelValues(pipelineName, status.String()).Inc()
	r.pipelineDuration.WithLabelValues(pipelineName).Observe(duration.Seconds())
}

// RecordStepEnd counts the step outcome and observes its duration.
func (r *PrometheusRecorder) RecordStepEnd(stepName string, outcome model.StepOutcome, duration time.Duration) {
	r.stepOutcomes.WithLabelValues(stepName, outcome.String()).Inc()
	r.stepDuration.WithLabelValues(stepName).Observe(duration.Seconds())
}

// RecordAttempt counts one execution attempt.
func (r *PrometheusRecorder) RecordAttempt(stepName string, outcome model.AttemptOutcome) {
	r.attempts.WithLabelValues(stepName, string(outcome)).Inc()
}

// Verify interfaces
var _ coremetrics.MetricRecorder = (*PrometheusRecorder)(nil)
