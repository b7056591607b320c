// Package step_test provides unit tests for the SQL step executor using a
// mocked database connection.
package step_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/ejcourts/predms/pkg/etl/core/config"
	step "github.com/ejcourts/predms/pkg/etl/engine/step"
	exception "github.com/ejcourts/predms/pkg/etl/support/util/exception"
)

func pipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		TargetDatabase:          "ElPaso_TX",
		StatementTimeoutSeconds: 600,
		LockTimeoutSeconds:      600,
	}
}

func TestSQLStepExecutor_RunsBatchesInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("SET SESSION innodb_lock_wait_timeout = 600").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE CasesToConvert").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO CasesToConvert").
		WillReturnResult(sqlmock.NewResult(0, 25))

	executor := step.NewSQLStepExecutor(db, "mysql", pipelineConfig())
	rows, err := executor.ExecuteBatches(context.Background(), "gather_caseids", []string{
		"CREATE TABLE CasesToConvert (CaseID INT)",
		"INSERT INTO CasesToConvert SELECT CaseID FROM SUPCASEHDR",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(25), rows, "rows accumulate across batches")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStepExecutor_PostgresLockTimeout(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("SET lock_timeout = '600s'").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE TablesToConvert").
		WillReturnResult(sqlmock.NewResult(0, 7))

	executor := step.NewSQLStepExecutor(db, "postgres", pipelineConfig())
	rows, err := executor.ExecuteBatches(context.Background(), "update_joins", []string{
		"UPDATE TablesToConvert SET JoinClause = NULL",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(7), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStepExecutor_UnknownDialectSkipsLockTimeout(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM staging").
		WillReturnResult(sqlmock.NewResult(0, 3))

	executor := step.NewSQLStepExecutor(db, "sqlite", pipelineConfig())
	rows, err := executor.ExecuteBatches(context.Background(), "cleanup", []string{
		"DELETE FROM staging",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(3), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStepExecutor_FirstFailingBatchAborts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	driverErr := errors.New("table 'CHARGE' doesn't exist")
	mock.ExpectExec("SET SESSION innodb_lock_wait_timeout = 600").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO ChargesToConvert").
		WillReturnError(driverErr)

	executor := step.NewSQLStepExecutor(db, "mysql", pipelineConfig())
	rows, err := executor.ExecuteBatches(context.Background(), "gather_chargeids", []string{
		"INSERT INTO ChargesToConvert SELECT ChargeID FROM CHARGE",
		"INSERT INTO ChargesToConvert SELECT ChargeID FROM CHARGE_ARCHIVE",
	})

	require.Error(t, err)
	assert.Equal(t, int64(0), rows)
	assert.ErrorIs(t, err, driverErr)
	assert.Contains(t, err.Error(), "gather_chargeids")
	assert.Contains(t, err.Error(), "batch 1/2")

	var etlErr *exception.ETLError
	require.ErrorAs(t, err, &etlErr)
	assert.Equal(t, exception.ClassPermanent, etlErr.Class())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStepExecutor_ZeroRowsSucceeds(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("SET SESSION innodb_lock_wait_timeout = 600").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO CasesToConvert").
		WillReturnResult(sqlmock.NewResult(0, 0))

	executor := step.NewSQLStepExecutor(db, "mysql", pipelineConfig())
	rows, err := executor.ExecuteBatches(context.Background(), "gather_caseids", []string{
		"INSERT INTO CasesToConvert SELECT CaseID FROM SUPCASEHDR WHERE 1 = 0",
	})

	require.NoError(t, err, "zero affected rows is not an execution failure")
	assert.Equal(t, int64(0), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
