// Package database defines the connection-provider abstraction the pipeline
// runs against. Concrete providers live in the gorm subpackage; the pipeline
// core only ever sees these interfaces.
package database

import (
	"context"
	"database/sql"

	dbconfig "github.com/ejcourts/predms/pkg/etl/adapter/database/config"
)

// DBConnection represents an abstraction of a live database connection.
type DBConnection interface {
	// Name returns the logical connection name (e.g. "target", "metadata").
	Name() string
	// Type returns the database type (e.g. "mysql", "postgres", "sqlite").
	Type() string
	// Ping validates the connection.
	Ping(ctx context.Context) error
	// Close closes the connection.
	Close() error
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB for raw batch execution.
	GetSQLDB() (*sql.DB, error)
}

// DBProvider is responsible for providing database connections of one type
// based on configuration.
type DBProvider interface {
	// GetConnection retrieves (establishing if needed) the connection with
	// the specified name.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the database type handled by this provider.
	Type() string
}

// DBProviderGroup is the Fx group tag used to collect all DBProvider
// implementations.
const DBProviderGroup = "db_providers"
