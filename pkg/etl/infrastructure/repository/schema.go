// Package repository persists pipeline run history to the metadata database
// through GORM. The history is append-only: each run writes one run row and
// one row per executed step.
package repository

import (
	"strings"
	"time"
)

// RunExecutionEntity is the persisted form of one pipeline run.
type RunExecutionEntity struct {
	ID           string     `gorm:"primaryKey;size:36"`
	PipelineName string     `gorm:"size:128;index"`
	Status       string     `gorm:"size:16"`
	StartTime    time.Time  `gorm:""`
	EndTime      *time.Time `gorm:""`
	FailedStep   string     `gorm:"size:128"`
	ErrorMessage string     `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName maps the entity to the etl_run_execution table.
func (RunExecutionEntity) TableName() string {
	return "etl_run_execution"
}

// StepExecutionEntity is the persisted form of one executed step within a run.
type StepExecutionEntity struct {
	ID             string     `gorm:"primaryKey;size:36"`
	RunID          string     `gorm:"size:36;index"`
	StepName       string     `gorm:"size:128"`
	Outcome        string     `gorm:"size:16"`
	Attempts       int        `gorm:""`
	RowsAffected   int64      `gorm:""`
	ProducedTables string     `gorm:"type:text"`
	StartTime      time.Time  `gorm:""`
	EndTime        *time.Time `gorm:""`
	ErrorMessage   string     `gorm:"type:text"`
	CreatedAt      time.Time
}

// TableName maps the entity to the etl_step_execution table.
func (StepExecutionEntity) TableName() string {
	return "etl_step_execution"
}

// joinTables serializes a produced-table list for storage.
func joinTables(tables []string) string {
	return strings.Join(tables, ",")
}
