// Package config provides structures and utilities for managing the
// migration pipeline's application configuration.
package config

// EmbeddedConfig holds the content of the configuration file, typically
// embedded into the binary and passed from main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// RetryConfig holds the retry policy settings for step execution.
type RetryConfig struct {
	MaxAttempts             int      `yaml:"max_attempts"`               // MaxAttempts is the maximum number of attempts per step (>= 1).
	InitialInterval         int      `yaml:"initial_interval"`           // InitialInterval is the first backoff interval in milliseconds.
	Multiplier              float64  `yaml:"multiplier"`                 // Multiplier is the exponential backoff factor applied per attempt.
	RetryOnStatementTimeout bool     `yaml:"retry_on_statement_timeout"` // RetryOnStatementTimeout opts statement timeouts into the transient class.
	RetryableExceptions     []string `yaml:"retryable_exceptions"`       // RetryableExceptions lists additional retryable error names.
}

// PipelineConfig holds the settings of a pipeline run.
type PipelineConfig struct {
	// TargetDatabase is the name substituted for the {{database}} placeholder
	// in step SQL. Must be a plain SQL identifier.
	TargetDatabase string `yaml:"target_database"`
	// TargetDBRef is the name of the database connection the steps run against.
	TargetDBRef string `yaml:"target_db_ref"`
	// MetadataDBRef is the name of the database connection holding run history.
	MetadataDBRef string `yaml:"metadata_db_ref"`
	// StatementTimeoutSeconds bounds each individual SQL statement.
	StatementTimeoutSeconds int `yaml:"statement_timeout_seconds"`
	// LockTimeoutSeconds is the session lock timeout requested before a batch.
	LockTimeoutSeconds int `yaml:"lock_timeout_seconds"`
	// IncludeEmptyTables accepts staging tables that end up with zero rows.
	// When false, an empty staging table fails the run.
	IncludeEmptyTables bool `yaml:"include_empty_tables"`
	// Retry is the step retry policy configuration.
	Retry RetryConfig `yaml:"retry"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g. "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// PreDMSConfig holds all configuration under the "predms" top-level key.
type PreDMSConfig struct {
	// Pipeline contains the run settings.
	Pipeline PipelineConfig `yaml:"pipeline"`
	// System contains system-wide configuration.
	System SystemConfig `yaml:"system"`
	// AdapterConfigs holds per-connection database blocks, keyed by
	// connection name (e.g. "target", "metadata").
	AdapterConfigs map[string]interface{} `yaml:"database"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// PreDMS contains the top-level configuration for the migration pipeline.
	PreDMS PreDMSConfig `yaml:"predms"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new Config populated with default values.
func NewConfig() *Config {
	cfg := &Config{
		PreDMS: PreDMSConfig{
			System: SystemConfig{
				Logging: LoggingConfig{Level: "INFO"},
			},
			Pipeline: PipelineConfig{
				TargetDatabase:          "ElPaso_TX",
				TargetDBRef:             "target",
				MetadataDBRef:           "metadata",
				StatementTimeoutSeconds: 600,
				LockTimeoutSeconds:      600,
				IncludeEmptyTables:      false,
				Retry: RetryConfig{
					MaxAttempts:             3,
					InitialInterval:         1000,
					Multiplier:              2.0,
					RetryOnStatementTimeout: false,
					RetryableExceptions: []string{
						"mysql.ErrInvalidConn",
						"sql.ErrConnDone",
					},
				},
			},
		},
	}

	// Initialized as an empty map, populated by YAML or environment overrides.
	cfg.PreDMS.AdapterConfigs = map[string]interface{}{}
	return cfg
}
