// Package repository_test provides unit tests for the run history
// repository using a mocked GORM connection.
package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	model "github.com/ejcourts/predms/pkg/etl/core/domain/model"
	repository "github.com/ejcourts/predms/pkg/etl/infrastructure/repository"
)

// setupGormMock builds a GORM handle over a sqlmock connection.
func setupGormMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: gorm_logger.Default.LogMode(gorm_logger.Silent)})
	require.NoError(t, err)

	t.Cleanup(func() {
		mock.ExpectClose()
		sqlDB.Close()
	})
	return gormDB, mock
}

// completedResult builds a finished two-step run.
func completedResult() *model.PipelineResult {
	result := model.NewPipelineResult("justice-staging")
	result.MarkAsStarted()
	now := time.Now()
	result.Steps = append(result.Steps,
		model.StepResult{
			StepName:       "gather_caseids",
			Outcome:        model.StepOutcomeCompleted,
			Attempts:       []model.ExecutionAttempt{{Number: 1, Outcome: model.AttemptSuccess}},
			RowsAffected:   25,
			ProducedTables: []string{"CasesToConvert"},
			StartTime:      now,
			EndTime:        now.Add(2 * time.Second),
		},
		model.StepResult{
			StepName:     "gather_chargeids",
			Outcome:      model.StepOutcomeCompleted,
			Attempts:     []model.ExecutionAttempt{{Number: 1, Outcome: model.AttemptTransientFailure}, {Number: 2, Outcome: model.AttemptSuccess}},
			RowsAffected: 110,
			StartTime:    now.Add(2 * time.Second),
			EndTime:      now.Add(5 * time.Second),
		},
	)
	result.MarkAsCompleted()
	return result
}

func TestRunHistoryRepository_SaveRun(t *testing.T) {
	gormDB, mock := setupGormMock(t)
	repo := repository.NewRunHistoryRepositoryFromDB(gormDB)

	result := completedResult()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `etl_run_execution`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `etl_step_execution`").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	err := repo.SaveRun(context.Background(), result)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunHistoryRepository_SaveRunRollsBackOnFailure(t *testing.T) {
	gormDB, mock := setupGormMock(t)
	repo := repository.NewRunHistoryRepositoryFromDB(gormDB)

	result := completedResult()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `etl_run_execution`").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.SaveRun(context.Background(), result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save run history")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunHistoryRepository_SaveFailedRun(t *testing.T) {
	gormDB, mock := setupGormMock(t)
	repo := repository.NewRunHistoryRepositoryFromDB(gormDB)

	result := model.NewPipelineResult("justice-staging")
	result.MarkAsStarted()
	result.Steps = append(result.Steps, model.StepResult{
		StepName:  "gather_caseids",
		Outcome:   model.StepOutcomeFailed,
		Attempts:  []model.ExecutionAttempt{{Number: 1, Outcome: model.AttemptPermanentFailure}},
		StartTime: time.Now(),
		EndTime:   time.Now(),
		Err:       errors.New("syntax error"),
	})
	result.MarkAsFailed("gather_caseids", errors.New("syntax error"))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `etl_run_execution`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `etl_step_execution`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.SaveRun(context.Background(), result)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunHistoryRepository_ListRecentRuns(t *testing.T) {
	gormDB, mock := setupGormMock(t)
	repo := repository.NewRunHistoryRepositoryFromDB(gormDB)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "pipeline_name", "status", "start_time", "failed_step"}).
		AddRow("run-2", "justice-staging", "COMPLETED", now, "").
		AddRow("run-1", "justice-staging", "FAILED", now.Add(-time.Hour), "gather_chargeids")

	mock.ExpectQuery("SELECT \\* FROM `etl_run_execution`").
		WillReturnRows(rows)

	runs, err := repo.ListRecentRuns(context.Background(), "justice-staging", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "FAILED", runs[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
