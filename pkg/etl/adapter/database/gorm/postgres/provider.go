// Package postgres provides a GORM DBProvider implementation for PostgreSQL databases.
package postgres

import (
	"fmt"

	dbadapter "github.com/ejcourts/predms/pkg/etl/adapter/database"
	dbconfig "github.com/ejcourts/predms/pkg/etl/adapter/database/config"
	gormadapter "github.com/ejcourts/predms/pkg/etl/adapter/database/gorm"
	config "github.com/ejcourts/predms/pkg/etl/core/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// init registers the PostgreSQL dialector factory with the gorm adapter.
func init() {
	gormadapter.RegisterDialector("postgres", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		p := &PostgresDBProvider{} // Temporary instance to call the ConnectionString method.
		connStr := p.ConnectionString(cfg)
		return postgres.Open(connStr), nil
	})
}

// PostgresDBProvider implements database.DBProvider for PostgreSQL connections.
type PostgresDBProvider struct {
	*gormadapter.BaseProvider
}

// ConnectionString generates the DSN for PostgreSQL connections.
func (p *PostgresDBProvider) ConnectionString(c dbconfig.DatabaseConfig) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslmode)
}

// NewProvider creates a new database.DBProvider for PostgreSQL.
// This function is intended to be used with fx.Provide.
func NewProvider(cfg *config.Config) dbadapter.DBProvider {
	return &PostgresDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "postgres")}
}
