package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ejcourts/predms/pkg/etl/support/util/exception"
	"github.com/ejcourts/predms/pkg/etl/support/util/logger"
)

const moduleName = "config"

// loadConfig loads configuration from the embedded YAML and environment
// variables. Intended to be called once during application startup.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	// 1. Defaults come from NewConfig().

	// 2. Expand ${VAR} placeholders, then parse the embedded YAML into a
	// temporary Config so values land with their proper types.
	expander := NewOsEnvironmentExpander()
	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewETLError(moduleName, "failed to expand environment placeholders in embedded config", err, exception.ClassConfig)
	}

	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.NewETLError(moduleName, "failed to unmarshal embedded config", err, exception.ClassConfig)
	}

	// 3. Merge YAML configuration over the defaults.
	mergeConfig(cfg, &yamlConfig)

	// 4. Override with environment variables.
	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewETLError(moduleName, "failed to load config from environment variables", err, exception.ClassConfig)
	}
	return cfg, nil
}

// LoadConfig loads configuration from the embedded YAML and environment
// variables, then validates it. Expected to be called once at startup.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	cfg, err := loadConfig(envFilePath, embeddedConfig)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration for the mistakes that must stop a
// run before any step executes: a non-positive attempt ceiling, unknown
// retryable exception names, or missing connection references.
func Validate(cfg *Config) error {
	p := cfg.PreDMS.Pipeline
	if p.Retry.MaxAttempts < 1 {
		return exception.NewConfigError(moduleName, "retry.max_attempts must be >= 1, got %d", p.Retry.MaxAttempts)
	}
	if p.Retry.InitialInterval < 0 {
		return exception.NewConfigError(moduleName, "retry.initial_interval must not be negative, got %d", p.Retry.InitialInterval)
	}
	if p.TargetDBRef == "" {
		return exception.NewConfigError(moduleName, "pipeline.target_db_ref is required")
	}
	if p.TargetDatabase == "" {
		return exception.NewConfigError(moduleName, "pipeline.target_database is required")
	}
	for _, name := range p.Retry.RetryableExceptions {
		if !exception.IsErrorTypeRegistered(name) {
			return exception.NewConfigError(moduleName, "retry configuration references unknown exception class: %q", name)
		}
	}
	return nil
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Non-zero values in sourceConfig overwrite the corresponding defaults.
func mergeConfig(destConfig, sourceConfig *Config) {
	mergePreDMSConfig(&destConfig.PreDMS, &sourceConfig.PreDMS)
}

// mergePreDMSConfig merges source into dest.
func mergePreDMSConfig(dest, source *PreDMSConfig) {
	mergePipelineConfig(&dest.Pipeline, &source.Pipeline)
	mergeSystemConfig(&dest.System, &source.System)

	if source.AdapterConfigs != nil {
		if dest.AdapterConfigs == nil {
			dest.AdapterConfigs = make(map[string]interface{})
		}
		for key, value := range source.AdapterConfigs {
			dest.AdapterConfigs[key] = value
		}
	}
}

// mergePipelineConfig merges source into dest.
func mergePipelineConfig(dest, source *PipelineConfig) {
	if source.TargetDatabase != "" {
		dest.TargetDatabase = source.TargetDatabase
	}
	if source.TargetDBRef != "" {
		dest.TargetDBRef = source.TargetDBRef
	}
	if source.MetadataDBRef != "" {
		dest.MetadataDBRef = source.MetadataDBRef
	}
	if source.StatementTimeoutSeconds != 0 {
		dest.StatementTimeoutSeconds = source.StatementTimeoutSeconds
	}
	if source.LockTimeoutSeconds != 0 {
		dest.LockTimeoutSeconds = source.LockTimeoutSeconds
	}
	// Booleans merge directly; YAML false and absent are indistinguishable,
	// and the default is false for both flags involved.
	if source.IncludeEmptyTables {
		dest.IncludeEmptyTables = true
	}
	mergeRetryConfig(&dest.Retry, &source.Retry)
}

// mergeRetryConfig merges source into dest.
func mergeRetryConfig(dest, source *RetryConfig) {
	if source.MaxAttempts != 0 {
		dest.MaxAttempts = source.MaxAttempts
	}
	if source.InitialInterval != 0 {
		dest.InitialInterval = source.InitialInterval
	}
	if source.Multiplier != 0 {
		dest.Multiplier = source.Multiplier
	}
	if source.RetryOnStatementTimeout {
		dest.RetryOnStatementTimeout = true
	}
	if source.RetryableExceptions != nil {
		dest.RetryableExceptions = source.RetryableExceptions
	}
}

// mergeSystemConfig merges source into dest.
func mergeSystemConfig(dest, source *SystemConfig) {
	if source.Logging.Level != "" {
		dest.Logging.Level = source.Logging.Level
	}
}

// loadStructFromEnv recursively loads configuration values into a struct from
// environment variables, using the "yaml" tag to form the variable name.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		yamlTag = strings.Split(yamlTag, ",")[0]
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}

		if field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(envValue, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
			continue
		}

		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField sets the value of a reflect.Value field based on its kind.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
