// Package migration applies the metadata schema (run history tables) to the
// metadata database before a pipeline run, using golang-migrate over
// migration files embedded in the binary.
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	dbadapter "github.com/ejcourts/predms/pkg/etl/adapter/database"
	logger "github.com/ejcourts/predms/pkg/etl/support/util/logger"
)

// MigrationsTable names the version-tracking table golang-migrate maintains
// in the metadata database.
const MigrationsTable = "etl_schema_migrations"

// Migrator applies schema migrations to one database connection.
type Migrator interface {
	// Up applies all pending migrations found under path in migrationFS.
	Up(ctx context.Context, migrationFS fs.FS, path string) error
	// Down rolls back all applied migrations.
	Down(ctx context.Context, migrationFS fs.FS, path string) error
}

// migratorImpl implements Migrator over golang-migrate.
type migratorImpl struct {
	dbConn dbadapter.DBConnection
	dbType string
}

// NewMigrator creates a Migrator bound to the given connection.
func NewMigrator(dbConn dbadapter.DBConnection) Migrator {
	return &migratorImpl{
		dbConn: dbConn,
		dbType: dbConn.Type(),
	}
}

// getDatabaseDriver builds the migrate/v4 driver for the connection's type.
func (m *migratorImpl) getDatabaseDriver(sqlDB *sql.DB) (migratedb.Driver, error) {
	switch m.dbType {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: MigrationsTable})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: MigrationsTable})
	case "sqlite":
		return sqlite.WithInstance(sqlDB, &sqlite.Config{MigrationsTable: MigrationsTable})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", m.dbType)
	}
}

func (m *migratorImpl) getMigrateInstance(migrationFS fs.FS, path string) (*migrate.Migrate, error) {
	sqlDB, err := m.dbConn.GetSQLDB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sourceDriver, err := iofs.New(migrationFS, path)
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source driver for path %s: %w", path, err)
	}

	dbDriver, err := m.getDatabaseDriver(sqlDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	mInstance, err := migrate.NewWithInstance("iofs", sourceDriver, m.dbType, dbDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return mInstance, nil
}

func (m *migratorImpl) runMigration(ctx context.Context, migrationFS fs.FS, path string, command string) error {
	logger.Infof("Applying metadata schema migration '%s' (path: %s, db: %s)", command, path, m.dbType)

	mInstance, err := m.getMigrateInstance(migrationFS, path)
	if err != nil {
		return err
	}
	defer mInstance.Close()

	var migrateErr error
	switch command {
	case "up":
		migrateErr = mInstance.Up()
	case "down":
		migrateErr = mInstance.Down()
	default:
		return fmt.Errorf("unsupported migration command: %s", command)
	}

	if migrateErr != nil && !errors.Is(migrateErr, migrate.ErrNoChange) {
		return fmt.Errorf("migration '%s' failed (db: %s, path: %s): %w", command, m.dbType, path, migrateErr)
	}
	if errors.Is(migrateErr, migrate.ErrNoChange) {
		logger.Debugf("Metadata schema already up to date.")
	} else {
		logger.Infof("Metadata schema migration '%s' completed.", command)
	}
	return nil
}

// Up applies all pending migrations.
func (m *migratorImpl) Up(ctx context.Context, migrationFS fs.FS, path string) error {
	return m.runMigration(ctx, migrationFS, path, "up")
}

// Down rolls back all applied migrations.
func (m *migratorImpl) Down(ctx context.Context, migrationFS fs.FS, path string) error {
	return m.runMigration(ctx, migrationFS, path, "down")
}

// Verify interfaces
var _ Migrator = (*migratorImpl)(nil)
