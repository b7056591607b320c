// Package step executes the SQL batches of a single pipeline step against
// the target database. The retry loop lives one layer up; this executor
// performs exactly one attempt per call.
package step

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	config "github.com/ejcourts/predms/pkg/etl/core/config"
	exception "github.com/ejcourts/predms/pkg/etl/support/util/exception"
	logger "github.com/ejcourts/predms/pkg/etl/support/util/logger"
)

const moduleName = "step"

// Executor runs a step's SQL batches once and reports rows affected.
type Executor interface {
	// ExecuteBatches runs the given batches in order on a single attempt.
	// It returns the total rows affected across all batches.
	ExecuteBatches(ctx context.Context, stepName string, batches []string) (int64, error)
}

// SQLStepExecutor is the production Executor. It runs raw batches over a
// *sql.DB with per-statement timeouts and a session lock timeout.
type SQLStepExecutor struct {
	db               *sql.DB
	dbType           string
	statementTimeout time.Duration
	lockTimeout      time.Duration
	classifier       exception.Classifier
}

// NewSQLStepExecutor creates a SQLStepExecutor for the given connection.
// dbType selects the session lock-timeout dialect ("mysql", "postgres");
// other types skip the lock-timeout statement.
func NewSQLStepExecutor(db *sql.DB, dbType string, pipelineCfg config.PipelineConfig) *SQLStepExecutor {
	return &SQLStepExecutor{
		db:               db,
		dbType:           dbType,
		statementTimeout: time.Duration(pipelineCfg.StatementTimeoutSeconds) * time.Second,
		lockTimeout:      time.Duration(pipelineCfg.LockTimeoutSeconds) * time.Second,
		classifier:       exception.DefaultClassifier,
	}
}

// lockTimeoutStatement returns the dialect-specific session statement that
// bounds lock waits, or "" when the dialect has no equivalent.
func (e *SQLStepExecutor) lockTimeoutStatement() string {
	seconds := int(e.lockTimeout.Seconds())
	if seconds <= 0 {
		return ""
	}
	switch e.dbType {
	case "mysql":
		return fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", seconds)
	case "postgres":
		return fmt.Sprintf("SET lock_timeout = '%ds'", seconds)
	default:
		return ""
	}
}

// ExecuteBatches runs the batches sequentially on a single connection so the
// session lock timeout applies to every batch. Each batch gets its own
// statement timeout; the first failure aborts the attempt.
func (e *SQLStepExecutor) ExecuteBatches(ctx context.Context, stepName string, batches []string) (int64, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return 0, exception.NewETLError(moduleName,
			fmt.Sprintf("step '%s': failed to acquire connection", stepName),
			err, e.classifier(err))
	}
	defer conn.Close()

	if stmt := e.lockTimeoutStatement(); stmt != "" {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return 0, exception.NewETLError(moduleName,
				fmt.Sprintf("step '%s': failed to set session lock timeout", stepName),
				err, e.classifier(err))
		}
	}

	var totalRows int64
	for i, batch := range batches {
		rows, err := e.executeBatch(ctx, conn, batch)
		if err != nil {
			return totalRows, exception.NewETLError(moduleName,
				fmt.Sprintf("step '%s': batch %d/%d failed", stepName, i+1, len(batches)),
				err, e.classifier(err))
		}
		totalRows += rows
		logger.Debugf("Step '%s': batch %d/%d affected %d rows", stepName, i+1, len(batches), rows)
	}

	return totalRows, nil
}

// executeBatch runs one batch under its own statement timeout.
func (e *SQLStepExecutor) executeBatch(ctx context.Context, conn *sql.Conn, batch string) (int64, error) {
	execCtx := ctx
	if e.statementTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.statementTimeout)
		defer cancel()
	}

	res, err := conn.ExecContext(execCtx, batch)
	if err != nil {
		return 0, err
	}

	// Some drivers cannot report rows for DDL; treat that as zero, not an
	// error.
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return rows, nil
}

// Verify interfaces
var _ Executor = (*SQLStepExecutor)(nil)
