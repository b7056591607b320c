package retry

import (
	"context"
	"fmt"
	"time"

	model "github.com/ejcourts/predms/pkg/etl/core/domain/model"
	exception "github.com/ejcourts/predms/pkg/etl/support/util/exception"
	logger "github.com/ejcourts/predms/pkg/etl/support/util/logger"
)

const moduleName = "retry"

// Operation is a unit of work the executor drives. It returns the number of
// rows the operation affected.
type Operation func(ctx context.Context) (int64, error)

// Result summarizes a completed execution, successful or not.
type Result struct {
	// Rows is the row count reported by the last attempt.
	Rows int64
	// Attempts records every attempt made, in order.
	Attempts []model.ExecutionAttempt
}

// Executor runs operations under a RetryPolicy with exponential backoff.
type Executor struct {
	policy RetryPolicy
	// sleep is swapped out in tests to avoid real waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an Executor bound to the given policy.
func NewExecutor(policy RetryPolicy) *Executor {
	return &Executor{
		policy: policy,
		sleep:  sleepContext,
	}
}

// NewExecutorWithSleep creates an Executor with a custom wait function.
// Tests use this to record backoff intervals without real waiting.
func NewExecutorWithSleep(policy RetryPolicy, sleep func(ctx context.Context, d time.Duration) error) *Executor {
	return &Executor{
		policy: policy,
		sleep:  sleep,
	}
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Execute runs op until it succeeds, a permanent failure occurs, or the
// attempt budget is exhausted. A nil error from op short-circuits the loop
// immediately; remaining attempts are never consumed.
func (e *Executor) Execute(ctx context.Context, stepName string, op Operation) (Result, error) {
	maxAttempts := e.policy.GetMaxAttempts()
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	result := Result{}
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		rows, err := op(ctx)
		elapsed := time.Since(start)

		if err == nil {
			result.Rows = rows
			result.Attempts = append(result.Attempts, model.ExecutionAttempt{
				Number:   attempt,
				Outcome:  model.AttemptSuccess,
				Duration: elapsed,
			})
			logger.Infof("Step '%s' succeeded on attempt %d/%d (%.2fs, %d rows)",
				stepName, attempt, maxAttempts, elapsed.Seconds(), rows)
			return result, nil
		}

		lastErr = err

		if !e.policy.ShouldRetry(err) {
			result.Attempts = append(result.Attempts, model.ExecutionAttempt{
				Number:   attempt,
				Outcome:  model.AttemptPermanentFailure,
				Duration: elapsed,
				Err:      err,
			})
			logger.Errorf("Step '%s' failed permanently on attempt %d/%d: %v",
				stepName, attempt, maxAttempts, err)
			return result, exception.NewETLError(moduleName,
				fmt.Sprintf("step '%s' failed permanently after %d attempt(s)", stepName, attempt),
				err, exception.ClassPermanent)
		}

		result.Attempts = append(result.Attempts, model.ExecutionAttempt{
			Number:   attempt,
			Outcome:  model.AttemptTransientFailure,
			Duration: elapsed,
			Err:      err,
		})

		if attempt == maxAttempts {
			break
		}

		backoff := e.policy.GetBackoffInterval(attempt)
		logger.Warnf("Step '%s' failed transiently on attempt %d/%d, retrying in %v: %v",
			stepName, attempt, maxAttempts, backoff, err)
		if sleepErr := e.sleep(ctx, backoff); sleepErr != nil {
			return result, exception.NewETLError(moduleName,
				fmt.Sprintf("step '%s' interrupted while waiting to retry", stepName),
				sleepErr, exception.ClassPermanent)
		}
	}

	logger.Errorf("Step '%s' exhausted all %d attempts: %v", stepName, maxAttempts, lastErr)
	return result, exception.NewETLError(moduleName,
		fmt.Sprintf("step '%s' failed after exhausting %d attempt(s)", stepName, maxAttempts),
		lastErr, exception.ClassTransient)
}
