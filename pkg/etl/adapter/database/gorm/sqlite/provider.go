// Package sqlite provides a GORM DBProvider implementation for SQLite databases.
// SQLite is mainly useful as a local metadata store during development.
package sqlite

import (
	"errors"

	dbadapter "github.com/ejcourts/predms/pkg/etl/adapter/database"
	dbconfig "github.com/ejcourts/predms/pkg/etl/adapter/database/config"
	gormadapter "github.com/ejcourts/predms/pkg/etl/adapter/database/gorm"
	config "github.com/ejcourts/predms/pkg/etl/core/config"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// init registers the SQLite dialector factory with the gorm adapter.
func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" { // Ensure database path is provided.
			return nil, errors.New("SQLite database path cannot be empty")
		}
		p := &SQLiteDBProvider{} // Temporary instance to call the ConnectionString method.
		connStr := p.ConnectionString(cfg)
		return sqlite.Open(connStr), nil
	})
}

// SQLiteDBProvider implements database.DBProvider for SQLite connections.
type SQLiteDBProvider struct {
	*gormadapter.BaseProvider
}

// ConnectionString generates the DSN for SQLite connections.
func (p *SQLiteDBProvider) ConnectionString(c dbconfig.DatabaseConfig) string {
	// GORM's SQLite dialector expects the file path directly.
	return c.Database
}

// NewProvider creates a new database.DBProvider for SQLite.
// This function is intended to be used with fx.Provide.
func NewProvider(cfg *config.Config) dbadapter.DBProvider {
	return &SQLiteDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "sqlite")}
}
