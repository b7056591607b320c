package main

import (
	"context"
	"embed"
	"fmt"
	"time"

	dbadapter "github.com/ejcourts/predms/pkg/etl/adapter/database"
	gormmysql "github.com/ejcourts/predms/pkg/etl/adapter/database/gorm/mysql"
	gormpostgres "github.com/ejcourts/predms/pkg/etl/adapter/database/gorm/postgres"
	gormsqlite "github.com/ejcourts/predms/pkg/etl/adapter/database/gorm/sqlite"
	migration "github.com/ejcourts/predms/pkg/etl/component/migration"
	config "github.com/ejcourts/predms/pkg/etl/core/config"
	model "github.com/ejcourts/predms/pkg/etl/core/domain/model"
	coremetrics "github.com/ejcourts/predms/pkg/etl/core/metrics"
	pipeline "github.com/ejcourts/predms/pkg/etl/core/pipeline"
	retry "github.com/ejcourts/predms/pkg/etl/engine/retry"
	step "github.com/ejcourts/predms/pkg/etl/engine/step"
	inframetrics "github.com/ejcourts/predms/pkg/etl/infrastructure/metrics"
	repository "github.com/ejcourts/predms/pkg/etl/infrastructure/repository"
	logger "github.com/ejcourts/predms/pkg/etl/support/util/logger"

	"go.uber.org/fx"
)

// GetApplicationOptions builds the uber-fx options for the application.
// Configuration is loaded eagerly so the log level is set before any module
// starts producing output.
func GetApplicationOptions(
	appCtx context.Context,
	envFilePath string,
	embeddedConfig config.EmbeddedConfig,
	embeddedPipeline pipeline.DefinitionBytes,
	migrationsFS embed.FS,
) []fx.Option {
	cfg, err := config.LoadConfig(envFilePath, embeddedConfig)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.SetLogLevel(cfg.PreDMS.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.PreDMS.System.Logging.Level)

	var options []fx.Option

	options = append(options, fx.Supply(
		embeddedPipeline,
		migrationsFS,
		cfg,
		fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
	))
	options = append(options, logger.Module)
	options = append(options, gormmysql.Module)
	options = append(options, gormpostgres.Module)
	options = append(options, gormsqlite.Module)
	options = append(options, dbadapter.Module)
	options = append(options, pipeline.Module)
	options = append(options, inframetrics.Module)
	options = append(options, fx.Invoke(fx.Annotate(startPipelineExecution,
		fx.ParamTags("", "", "", "", "", "", "", `name:"appCtx"`))))

	return options
}

// startPipelineExecution registers the Fx hook that drives one pipeline run
// and then shuts the application down with the run's exit code.
func startPipelineExecution(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	def *pipeline.Definition,
	registry *pipeline.ScopeRegistry,
	providers *dbadapter.ProviderRegistry,
	recorder coremetrics.MetricRecorder,
	appCtx context.Context,
	migrationsFS embed.FS,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go runPipeline(appCtx, shutdowner, cfg, def, registry, providers, recorder, migrationsFS)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Application is shutting down.")
			return providers.CloseAll()
		},
	})
}

// runPipeline performs one full run: metadata schema migration, pipeline
// execution, history persistence and the final report.
func runPipeline(
	ctx context.Context,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	def *pipeline.Definition,
	registry *pipeline.ScopeRegistry,
	providers *dbadapter.ProviderRegistry,
	recorder coremetrics.MetricRecorder,
	migrationsFS embed.FS,
) {
	exitCode := 1
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Panic recovered in pipeline execution: %v", r)
			exitCode = 1
		}
		if err := shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
			logger.Errorf("Failed to shutdown application: %v", err)
		}
	}()

	pipelineCfg := cfg.PreDMS.Pipeline

	historyRepo, err := prepareMetadata(ctx, cfg, providers, migrationsFS)
	if err != nil {
		logger.Errorf("Failed to prepare metadata database: %v", err)
		return
	}

	targetConn, err := providers.Connect(pipelineCfg.TargetDBRef)
	if err != nil {
		logger.Errorf("Failed to connect target database %q: %v", pipelineCfg.TargetDBRef, err)
		return
	}
	if err := targetConn.Ping(ctx); err != nil {
		logger.Errorf("Target database %q is unreachable: %v", pipelineCfg.TargetDBRef, err)
		return
	}
	sqlDB, err := targetConn.GetSQLDB()
	if err != nil {
		logger.Errorf("Failed to get target sql.DB: %v", err)
		return
	}

	policy := retry.NewDefaultRetryPolicyFactory().Create(pipelineCfg.Retry)
	retryer := retry.NewExecutor(policy)
	executor := step.NewSQLStepExecutor(sqlDB, targetConn.Type(), pipelineCfg)
	orchestrator := pipeline.NewOrchestrator(def, pipelineCfg, registry, retryer, executor, recorder)

	result := orchestrator.Run(ctx)

	if historyRepo != nil {
		// History is saved with a fresh context so a cancelled run is still
		// recorded.
		saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := historyRepo.SaveRun(saveCtx, result); err != nil {
			logger.Errorf("Failed to save run history: %v", err)
		}
	}

	printReport(result)

	if result.Status == model.RunStatusCompleted {
		exitCode = 0
	}
}

// prepareMetadata connects the metadata database, applies its schema and
// returns the history repository. A missing metadata_db_ref disables history.
func prepareMetadata(
	ctx context.Context,
	cfg *config.Config,
	providers *dbadapter.ProviderRegistry,
	migrationsFS embed.FS,
) (repository.RunHistoryRepository, error) {
	ref := cfg.PreDMS.Pipeline.MetadataDBRef
	if ref == "" {
		logger.Warnf("No metadata_db_ref configured; run history is disabled.")
		return nil, nil
	}

	metaConn, err := providers.Connect(ref)
	if err != nil {
		return nil, err
	}
	if err := metaConn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("metadata database %q is unreachable: %w", ref, err)
	}

	migrator := migration.NewMigrator(metaConn)
	path := "resources/migrations/" + metaConn.Type()
	if err := migrator.Up(ctx, migrationsFS, path); err != nil {
		return nil, err
	}

	return repository.NewRunHistoryRepository(metaConn)
}

// printReport logs the final per-step summary of the run.
func printReport(result *model.PipelineResult) {
	logger.Infof("==== Pipeline '%s' run %s: %s (%v) ====",
		result.PipelineName, result.RunID, result.Status, result.Duration())
	for _, s := range result.Steps {
		switch s.Outcome {
		case model.StepOutcomeCompleted:
			logger.Infof("  %-28s %s  attempts=%d rows=%d duration=%v",
				s.StepName, s.Outcome, s.AttemptCount(), s.RowsAffected, s.Duration())
		default:
			logger.Errorf("  %-28s %s  attempts=%d error=%v",
				s.StepName, s.Outcome, s.AttemptCount(), s.Err)
		}
	}
	if result.FailedStep != "" {
		logger.Errorf("Pipeline halted at step '%s': %v", result.FailedStep, result.Err)
	}
}
