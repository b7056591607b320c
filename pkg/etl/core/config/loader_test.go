// Package config_test provides unit tests for configuration loading, merging
// and validation.
package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/ejcourts/predms/pkg/etl/core/config"
	exception "github.com/ejcourts/predms/pkg/etl/support/util/exception"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := config.NewConfig()

	p := cfg.PreDMS.Pipeline
	assert.Equal(t, "ElPaso_TX", p.TargetDatabase)
	assert.Equal(t, "target", p.TargetDBRef)
	assert.Equal(t, "metadata", p.MetadataDBRef)
	assert.Equal(t, 600, p.StatementTimeoutSeconds)
	assert.Equal(t, 600, p.LockTimeoutSeconds)
	assert.False(t, p.IncludeEmptyTables)
	assert.Equal(t, 3, p.Retry.MaxAttempts)
	assert.Equal(t, 1000, p.Retry.InitialInterval)
	assert.Equal(t, 2.0, p.Retry.Multiplier)
	assert.False(t, p.Retry.RetryOnStatementTimeout)
}

func TestLoadConfig_YAMLOverridesDefaults(t *testing.T) {
	yaml := []byte(`
predms:
  system:
    logging:
      level: DEBUG
  pipeline:
    target_database: Travis_TX
    include_empty_tables: true
    retry:
      max_attempts: 5
      initial_interval: 250
  database:
    target:
      type: postgres
      host: db.internal
      port: 5432
`)
	cfg, err := config.LoadConfig("", yaml)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.PreDMS.System.Logging.Level)
	assert.Equal(t, "Travis_TX", cfg.PreDMS.Pipeline.TargetDatabase)
	assert.True(t, cfg.PreDMS.Pipeline.IncludeEmptyTables)
	assert.Equal(t, 5, cfg.PreDMS.Pipeline.Retry.MaxAttempts)
	assert.Equal(t, 250, cfg.PreDMS.Pipeline.Retry.InitialInterval)
	// Values absent from the YAML keep their defaults.
	assert.Equal(t, 2.0, cfg.PreDMS.Pipeline.Retry.Multiplier)
	assert.Equal(t, 600, cfg.PreDMS.Pipeline.StatementTimeoutSeconds)
	assert.Contains(t, cfg.PreDMS.AdapterConfigs, "target")
}

func TestLoadConfig_EnvOverridesYAML(t *testing.T) {
	t.Setenv("PREDMS_PIPELINE_TARGET_DATABASE", "Harris_TX")
	t.Setenv("PREDMS_PIPELINE_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("PREDMS_PIPELINE_RETRY_RETRYABLE_EXCEPTIONS", "sql.ErrConnDone, context.DeadlineExceeded")
	t.Setenv("PREDMS_SYSTEM_LOGGING_LEVEL", "WARN")

	yaml := []byte(`
predms:
  pipeline:
    target_database: Travis_TX
`)
	cfg, err := config.LoadConfig("", yaml)
	require.NoError(t, err)

	assert.Equal(t, "Harris_TX", cfg.PreDMS.Pipeline.TargetDatabase)
	assert.Equal(t, 7, cfg.PreDMS.Pipeline.Retry.MaxAttempts)
	assert.Equal(t, []string{"sql.ErrConnDone", "context.DeadlineExceeded"},
		cfg.PreDMS.Pipeline.Retry.RetryableExceptions)
	assert.Equal(t, "WARN", cfg.PreDMS.System.Logging.Level)
}

func TestLoadConfig_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TARGET_DB_HOST", "mssql.court.local")

	yaml := []byte(`
predms:
  database:
    target:
      type: mysql
      host: ${TARGET_DB_HOST}
`)
	cfg, err := config.LoadConfig("", yaml)
	require.NoError(t, err)

	target, ok := cfg.PreDMS.AdapterConfigs["target"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "mssql.court.local", target["host"])
}

func TestValidate_RejectsNonPositiveMaxAttempts(t *testing.T) {
	cfg := config.NewConfig()
	cfg.PreDMS.Pipeline.Retry.MaxAttempts = 0

	err := config.Validate(cfg)
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))
	assert.Contains(t, err.Error(), "max_attempts")
}

func TestValidate_RejectsUnknownRetryableException(t *testing.T) {
	cfg := config.NewConfig()
	cfg.PreDMS.Pipeline.Retry.RetryableExceptions = []string{"no.SuchError"}

	err := config.Validate(cfg)
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))
	assert.Contains(t, err.Error(), "no.SuchError")
}

func TestValidate_RequiresTargetReferences(t *testing.T) {
	cfg := config.NewConfig()
	cfg.PreDMS.Pipeline.TargetDBRef = ""
	err := config.Validate(cfg)
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))

	cfg = config.NewConfig()
	cfg.PreDMS.Pipeline.TargetDatabase = ""
	err = config.Validate(cfg)
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	assert.NoError(t, config.Validate(config.NewConfig()))
}
