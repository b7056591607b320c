package main

import (
	"context"
	"embed"
	"os"
	"os/signal"
	"syscall"

	logger "github.com/ejcourts/predms/pkg/etl/support/util/logger"

	"go.uber.org/fx"
)

// embeddedConfig holds the application YAML configuration.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// embeddedPipeline holds the declared pipeline definition.
//
//go:embed resources/pipeline.yaml
var embeddedPipeline []byte

// migrationsFS holds the metadata schema migration files, one directory per
// database type.
//
//go:embed resources/migrations
var migrationsFS embed.FS

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the pipeline...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	fxApp := fx.New(GetApplicationOptions(ctx, envFilePath, embeddedConfig, embeddedPipeline, migrationsFS)...)
	// Run blocks until the pipeline hook requests shutdown; the exit code
	// passed to Shutdowner becomes the process exit code.
	fxApp.Run()
	if fxApp.Err() != nil {
		logger.Fatalf("Application run failed: %v", fxApp.Err())
	}
}
