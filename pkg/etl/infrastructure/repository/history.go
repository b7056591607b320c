package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	dbadapter "github.com/ejcourts/predms/pkg/etl/adapter/database"
	model "github.com/ejcourts/predms/pkg/etl/core/domain/model"
	exception "github.com/ejcourts/predms/pkg/etl/support/util/exception"
)

const moduleName = "repository"

// RunHistoryRepository records completed pipeline runs and serves queries
// over past runs.
type RunHistoryRepository interface {
	// SaveRun persists the run and all of its step results in one
	// transaction.
	SaveRun(ctx context.Context, result *model.PipelineResult) error
	// FindRun loads one run with its steps by run ID.
	FindRun(ctx context.Context, runID string) (*RunExecutionEntity, []StepExecutionEntity, error)
	// ListRecentRuns returns the most recent runs of the named pipeline,
	// newest first.
	ListRecentRuns(ctx context.Context, pipelineName string, limit int) ([]RunExecutionEntity, error)
}

// gormDBProvider is the escape hatch connections expose when they are backed
// by GORM. The gorm adapter's DBConnection satisfies it.
type gormDBProvider interface {
	GetGormDB() *gorm.DB
}

// gormRunHistoryRepository implements RunHistoryRepository over GORM.
type gormRunHistoryRepository struct {
	db *gorm.DB
}

// NewRunHistoryRepository creates a repository on the given metadata
// connection. The connection must be GORM-backed.
func NewRunHistoryRepository(conn dbadapter.DBConnection) (RunHistoryRepository, error) {
	provider, ok := conn.(gormDBProvider)
	if !ok {
		return nil, exception.NewConfigError(moduleName,
			"metadata connection %q is not GORM-backed", conn.Name())
	}
	return &gormRunHistoryRepository{db: provider.GetGormDB()}, nil
}

// NewRunHistoryRepositoryFromDB creates a repository directly over a
// *gorm.DB. Tests use this with a mocked connection.
func NewRunHistoryRepositoryFromDB(db *gorm.DB) RunHistoryRepository {
	return &gormRunHistoryRepository{db: db}
}

// SaveRun persists the run and its steps atomically.
func (r *gormRunHistoryRepository) SaveRun(ctx context.Context, result *model.PipelineResult) error {
	runEntity := toRunEntity(result)
	stepEntities := toStepEntities(result)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&runEntity).Error; err != nil {
			return fmt.Errorf("failed to insert run %s: %w", result.RunID, err)
		}
		if len(stepEntities) > 0 {
			if err := tx.Create(&stepEntities).Error; err != nil {
				return fmt.Errorf("failed to insert steps of run %s: %w", result.RunID, err)
			}
		}
		return nil
	})
	if err != nil {
		return exception.NewETLError(moduleName, "failed to save run history", err, exception.DefaultClassifier(err))
	}
	return nil
}

// FindRun loads one run and its steps by run ID.
func (r *gormRunHistoryRepository) FindRun(ctx context.Context, runID string) (*RunExecutionEntity, []StepExecutionEntity, error) {
	var run RunExecutionEntity
	if err := r.db.WithContext(ctx).First(&run, "id = ?", runID).Error; err != nil {
		return nil, nil, exception.NewETLError(moduleName,
			fmt.Sprintf("run %s not found", runID), err, exception.DefaultClassifier(err))
	}
	var steps []StepExecutionEntity
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("start_time asc").
		Find(&steps).Error; err != nil {
		return nil, nil, exception.NewETLError(moduleName,
			fmt.Sprintf("failed to load steps of run %s", runID), err, exception.DefaultClassifier(err))
	}
	return &run, steps, nil
}

// ListRecentRuns returns the most recent runs, newest first.
func (r *gormRunHistoryRepository) ListRecentRuns(ctx context.Context, pipelineName string, limit int) ([]RunExecutionEntity, error) {
	var runs []RunExecutionEntity
	q := r.db.WithContext(ctx).Order("start_time desc")
	if pipelineName != "" {
		q = q.Where("pipeline_name = ?", pipelineName)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, exception.NewETLError(moduleName, "failed to list runs", err, exception.DefaultClassifier(err))
	}
	return runs, nil
}

// toRunEntity maps a PipelineResult to its persisted form.
func toRunEntity(result *model.PipelineResult) RunExecutionEntity {
	entity := RunExecutionEntity{
		ID:           result.RunID,
		PipelineName: result.PipelineName,
		Status:       result.Status.String(),
		StartTime:    result.StartTime,
		FailedStep:   result.FailedStep,
	}
	if !result.EndTime.IsZero() {
		end := result.EndTime
		entity.EndTime = &end
	}
	if result.Err != nil {
		entity.ErrorMessage = result.Err.Error()
	}
	return entity
}

// toStepEntities maps a run's step results to their persisted form.
func toStepEntities(result *model.PipelineResult) []StepExecutionEntity {
	entities := make([]StepExecutionEntity, 0, len(result.Steps))
	for _, s := range result.Steps {
		entity := StepExecutionEntity{
			ID:             model.NewID(),
			RunID:          result.RunID,
			StepName:       s.StepName,
			Outcome:        s.Outcome.String(),
			Attempts:       s.AttemptCount(),
			RowsAffected:   s.RowsAffected,
			ProducedTables: joinTables(s.ProducedTables),
			StartTime:      s.StartTime,
		}
		if !s.EndTime.IsZero() {
			end := s.EndTime
			entity.EndTime = &end
		}
		if s.Err != nil {
			entity.ErrorMessage = s.Err.Error()
		}
		entities = append(entities, entity)
	}
	return entities
}

// Verify interfaces
var _ RunHistoryRepository = (*gormRunHistoryRepository)(nil)
