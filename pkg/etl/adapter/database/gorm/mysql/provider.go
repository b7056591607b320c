// Package mysql provides a GORM DBProvider implementation for MySQL databases.
package mysql

import (
	"fmt"

	dbadapter "github.com/ejcourts/predms/pkg/etl/adapter/database"
	dbconfig "github.com/ejcourts/predms/pkg/etl/adapter/database/config"
	gormadapter "github.com/ejcourts/predms/pkg/etl/adapter/database/gorm"
	config "github.com/ejcourts/predms/pkg/etl/core/config"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// init registers the MySQL dialector factory with the gorm adapter.
func init() {
	gormadapter.RegisterDialector("mysql", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		p := &MySQLDBProvider{} // Temporary instance to call the ConnectionString method.
		connStr := p.ConnectionString(cfg)
		return mysql.Open(connStr), nil
	})
}

// MySQLDBProvider implements database.DBProvider for MySQL connections.
type MySQLDBProvider struct {
	*gormadapter.BaseProvider
}

// ConnectionString generates the DSN for MySQL connections.
func (p *MySQLDBProvider) ConnectionString(c dbconfig.DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&multiStatements=true",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// NewProvider creates a new database.DBProvider for MySQL.
// This function is intended to be used with fx.Provide.
func NewProvider(cfg *config.Config) dbadapter.DBProvider {
	return &MySQLDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "mysql")}
}
