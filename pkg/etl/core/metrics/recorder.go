// Package metrics defines the recording hooks the pipeline emits execution
// telemetry through. The prometheus implementation lives under
// infrastructure/metrics; this package only carries the contract and a no-op
// default so the engine never depends on a metrics backend.
package metrics

import (
	"time"

	model "github.com/ejcourts/predms/pkg/etl/core/domain/model"
)

// MetricRecorder receives execution events from the pipeline and its steps.
type MetricRecorder interface {
	// RecordPipelineStart is called once when a run begins.
	RecordPipelineStart(pipelineName string)
	// RecordPipelineEnd is called once when a run finishes, in any status.
	RecordPipelineEnd(pipelineName string, status model.RunStatus, duration time.Duration)
	// RecordStepEnd is called after each step completes or fails.
	RecordStepEnd(stepName string, outcome model.StepOutcome, duration time.Duration)
	// RecordAttempt is called for every execution attempt, including the
	// successful one.
	RecordAttempt(stepName string, outcome model.AttemptOutcome)
}

// NoopMetricRecorder discards all events.
type NoopMetricRecorder struct{}

// NewNoopMetricRecorder creates a recorder that does nothing.
func NewNoopMetricRecorder() *NoopMetricRecorder {
	return &NoopMetricRecorder{}
}

func (r *NoopMetricRecorder) RecordPipelineStart(pipelineName string) {}
func (r *NoopMetricRecorder) RecordPipelineEnd(pipelineName string, status model.RunStatus, duration time.Duration) {
}
func (r *NoopMetricRecorder) RecordStepEnd(stepName string, outcome model.StepOutcome, duration time.Duration) {
}
func (r *NoopMetricRecorder) RecordAttempt(stepName string, outcome model.AttemptOutcome) {}

// Verify interfaces
var _ MetricRecorder = (*NoopMetricRecorder)(nil)
