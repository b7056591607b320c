// Package model defines the domain objects of a migration pipeline run:
// run and step results, execution attempts and their outcomes.
package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the state of a pipeline run.
type RunStatus string

const (
	RunStatusStarting  RunStatus = "STARTING"
	RunStatusStarted   RunStatus = "STARTED"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// String returns the string representation of the RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// IsFinished checks if the RunStatus represents a finished state.
func (s RunStatus) IsFinished() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// StepOutcome is the final outcome of one pipeline step.
type StepOutcome string

const (
	StepOutcomeCompleted StepOutcome = "COMPLETED"
	StepOutcomeFailed    StepOutcome = "FAILED"
)

// String returns the StepOutcome as a string.
func (o StepOutcome) String() string {
	return string(o)
}

// AttemptOutcome is the outcome of a single execution attempt of a step.
type AttemptOutcome string

const (
	AttemptSuccess          AttemptOutcome = "SUCCESS"
	AttemptTransientFailure AttemptOutcome = "TRANSIENT_FAILURE"
	AttemptPermanentFailure AttemptOutcome = "PERMANENT_FAILURE"
)

// ExecutionAttempt records one try of running a step's SQL batch.
// Attempts are numbered from 1.
type ExecutionAttempt struct {
	Number   int
	Outcome  AttemptOutcome
	Duration time.Duration
	Err      error
}

// StepResult is the result of one pipeline step: its outcome, how many
// attempts were spent, the rows affected and the staging tables produced.
type StepResult struct {
	StepName       string
	Outcome        StepOutcome
	Attempts       []ExecutionAttempt
	RowsAffected   int64
	ProducedTables []string
	StartTime      time.Time
	EndTime        time.Time
	Err            error
}

// AttemptCount returns the number of attempts spent on this step.
func (r *StepResult) AttemptCount() int {
	return len(r.Attempts)
}

// Duration returns the wall-clock duration of the step across all attempts.
func (r *StepResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// PipelineResult is the result of a full pipeline run: the ordered list of
// step results, the overall status, and which step failed if any.
type PipelineResult struct {
	RunID        string
	PipelineName string
	Status       RunStatus
	StartTime    time.Time
	EndTime      time.Time
	Steps        []StepResult
	// FailedStep is the name of the step that halted the run, empty on success.
	FailedStep string
	Err        error
}

// NewPipelineResult creates a PipelineResult for a run that is starting now.
func NewPipelineResult(pipelineName string) *PipelineResult {
	return &PipelineResult{
		RunID:        NewID(),
		PipelineName: pipelineName,
		Status:       RunStatusStarting,
		StartTime:    time.Now(),
	}
}

// MarkAsStarted transitions the run to STARTED.
func (r *PipelineResult) MarkAsStarted() {
	r.Status = RunStatusStarted
}

// MarkAsCompleted transitions the run to COMPLETED and stamps the end time.
func (r *PipelineResult) MarkAsCompleted() {
	r.Status = RunStatusCompleted
	r.EndTime = time.Now()
}

// MarkAsFailed transitions the run to FAILED, recording the failing step and
// the error that halted it.
func (r *PipelineResult) MarkAsFailed(stepName string, err error) {
	r.Status = RunStatusFailed
	r.FailedStep = stepName
	r.Err = err
	r.EndTime = time.Now()
}

// CompletedSteps returns the names of steps that completed before any failure.
func (r *PipelineResult) CompletedSteps() []string {
	var names []string
	for _, s := range r.Steps {
		if s.Outcome == StepOutcomeCompleted {
			names = append(names, s.StepName)
		}
	}
	return names
}

// Duration returns the wall-clock duration of the run.
func (r *PipelineResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// NewID generates a new unique identifier for runs and step executions.
func NewID() string {
	return uuid.New().String()
}
