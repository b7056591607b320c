package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	config "github.com/ejcourts/predms/pkg/etl/core/config"
	model "github.com/ejcourts/predms/pkg/etl/core/domain/model"
	metrics "github.com/ejcourts/predms/pkg/etl/core/metrics"
	retry "github.com/ejcourts/predms/pkg/etl/engine/retry"
	step "github.com/ejcourts/predms/pkg/etl/engine/step"
	exception "github.com/ejcourts/predms/pkg/etl/support/util/exception"
	logger "github.com/ejcourts/predms/pkg/etl/support/util/logger"
	sqlutil "github.com/ejcourts/predms/pkg/etl/support/util/sqlutil"
)

// RetryExecutor drives one step's attempts under the retry policy.
// Satisfied by *retry.Executor.
type RetryExecutor interface {
	Execute(ctx context.Context, stepName string, op retry.Operation) (retry.Result, error)
}

// Orchestrator runs the declared pipeline steps in order. The declared order
// is the execution order; depends-on entries are verified against the scope
// registry before each step, never used to reorder. The first failed step
// halts the run.
type Orchestrator struct {
	def      *Definition
	cfg      config.PipelineConfig
	registry *ScopeRegistry
	retryer  RetryExecutor
	executor step.Executor
	recorder metrics.MetricRecorder
}

// NewOrchestrator creates an Orchestrator over the given definition.
func NewOrchestrator(
	def *Definition,
	cfg config.PipelineConfig,
	registry *ScopeRegistry,
	retryer RetryExecutor,
	executor step.Executor,
	recorder metrics.MetricRecorder,
) *Orchestrator {
	return &Orchestrator{
		def:      def,
		cfg:      cfg,
		registry: registry,
		retryer:  retryer,
		executor: executor,
		recorder: recorder,
	}
}

// Run executes the pipeline once and returns its result. The result is
// always non-nil; inspect its Status and Err for the outcome.
func (o *Orchestrator) Run(ctx context.Context) *model.PipelineResult {
	result := model.NewPipelineResult(o.def.Name)
	o.registry.Reset()
	o.recorder.RecordPipelineStart(o.def.Name)
	result.MarkAsStarted()

	logger.Infof("Pipeline '%s' started (run %s, %d steps, target database %s)",
		o.def.Name, result.RunID, len(o.def.Steps), o.cfg.TargetDatabase)

	for i := range o.def.Steps {
		st := &o.def.Steps[i]
		stepResult := o.runStep(ctx, st)
		result.Steps = append(result.Steps, stepResult)
		o.recorder.RecordStepEnd(st.ID, stepResult.Outcome, stepResult.Duration())

		if stepResult.Outcome == model.StepOutcomeFailed {
			result.MarkAsFailed(st.ID, stepResult.Err)
			logger.Errorf("Pipeline '%s' halted at step '%s' (%d of %d): %v",
				o.def.Name, st.ID, i+1, len(o.def.Steps), stepResult.Err)
			o.recorder.RecordPipelineEnd(o.def.Name, result.Status, result.Duration())
			return result
		}

		for _, table := range st.Produces {
			o.registry.Register(table, st.ID, stepResult.RowsAffected)
		}
	}

	result.MarkAsCompleted()
	logger.Infof("Pipeline '%s' completed: %d steps, %v", o.def.Name, len(result.Steps), result.Duration())
	o.recorder.RecordPipelineEnd(o.def.Name, result.Status, result.Duration())
	return result
}

// runStep executes one step: dependency verification, SQL preparation, the
// retried execution, and the empty staging table check.
func (o *Orchestrator) runStep(ctx context.Context, st *Step) model.StepResult {
	stepResult := model.StepResult{
		StepName:       st.ID,
		ProducedTables: st.Produces,
		StartTime:      time.Now(),
	}

	fail := func(err error) model.StepResult {
		stepResult.Outcome = model.StepOutcomeFailed
		stepResult.Err = err
		stepResult.EndTime = time.Now()
		return stepResult
	}

	if missing := o.missingDependencies(st); len(missing) > 0 {
		return fail(exception.NewETLError(moduleName,
			fmt.Sprintf("step '%s': required staging table(s) not produced: %s",
				st.ID, strings.Join(missing, ", ")),
			nil, exception.ClassPermanent))
	}

	batches, err := o.prepareBatches(st)
	if err != nil {
		return fail(err)
	}

	logger.Infof("Step '%s' starting: %s (%d batches)", st.ID, st.Description, len(batches))

	res, err := o.retryer.Execute(ctx, st.ID, func(ctx context.Context) (int64, error) {
		return o.executor.ExecuteBatches(ctx, st.ID, batches)
	})
	stepResult.Attempts = res.Attempts
	stepResult.RowsAffected = res.Rows
	for _, attempt := range res.Attempts {
		o.recorder.RecordAttempt(st.ID, attempt.Outcome)
	}
	if err != nil {
		return fail(err)
	}

	// A staging step that fills nothing usually means the source predicates
	// are wrong; surface it unless empty tables were explicitly allowed.
	if res.Rows == 0 && len(st.Produces) > 0 && !o.cfg.IncludeEmptyTables {
		return fail(exception.NewETLError(moduleName,
			fmt.Sprintf("step '%s' produced empty staging table(s) %s and include_empty_tables is disabled",
				st.ID, strings.Join(st.Produces, ", ")),
			nil, exception.ClassPermanent))
	}

	stepResult.Outcome = model.StepOutcomeCompleted
	stepResult.EndTime = time.Now()
	return stepResult
}

// missingDependencies returns the depends-on tables absent from the registry.
func (o *Orchestrator) missingDependencies(st *Step) []string {
	var missing []string
	for _, dep := range st.DependsOn {
		if !o.registry.Has(dep) {
			missing = append(missing, dep)
		}
	}
	return missing
}

// prepareBatches resolves, sanitizes and splits every operation's SQL into
// the flat batch list one attempt executes.
func (o *Orchestrator) prepareBatches(st *Step) ([]string, error) {
	var batches []string
	for _, op := range st.Operations {
		resolved, err := sqlutil.ResolveDatabase(op.SQL, o.cfg.TargetDatabase)
		if err != nil {
			return nil, err
		}
		split := sqlutil.SplitBatches(sqlutil.Sanitize(resolved))
		if len(split) == 0 {
			return nil, exception.NewConfigError(moduleName,
				"step %q: operation %q contains no executable statements", st.ID, op.Kind)
		}
		batches = append(batches, split...)
	}
	return batches, nil
}
