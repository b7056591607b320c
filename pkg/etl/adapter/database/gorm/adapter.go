package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbadapter "github.com/ejcourts/predms/pkg/etl/adapter/database"
	dbconfig "github.com/ejcourts/predms/pkg/etl/adapter/database/config"
	config "github.com/ejcourts/predms/pkg/etl/core/config"
	logger "github.com/ejcourts/predms/pkg/etl/support/util/logger"

	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

// NewGormLogger creates a gorm.Logger instance based on the configured log level.
func NewGormLogger(level string) gorm_logger.Interface {
	var gormLevel gorm_logger.LogLevel
	switch config.LogLevel(level) {
	case config.LogLevelSilent:
		gormLevel = gorm_logger.Silent
	case config.LogLevelError:
		gormLevel = gorm_logger.Error
	case config.LogLevelWarn:
		gormLevel = gorm_logger.Warn
	case config.LogLevelInfo:
		gormLevel = gorm_logger.Info
	default:
		gormLevel = gorm_logger.Silent
	}

	return gorm_logger.New(
		NewGormWriter(),
		gorm_logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// GormWriter redirects GORM log output to the pipeline's leveled logger.
type GormWriter struct{}

// NewGormWriter creates a new instance of GormWriter.
func NewGormWriter() *GormWriter {
	return &GormWriter{}
}

// Printf implements the gorm_logger.Writer interface.
func (w *GormWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	// SQL trace lines go to DEBUG, everything else to INFO.
	if strings.Contains(msg, "SELECT") || strings.Contains(msg, "INSERT") || strings.Contains(msg, "UPDATE") || strings.Contains(msg, "DELETE") {
		logger.Debugf("[GORM] %s", msg)
	} else {
		logger.Infof("[GORM] %s", msg)
	}
}

// GormDBAdapter implements database.DBConnection on top of a *gorm.DB.
type GormDBAdapter struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	cfg    dbconfig.DatabaseConfig
	dbType string
	name   string
}

// NewGormDBAdapter creates a new GormDBAdapter.
func NewGormDBAdapter(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string) dbadapter.DBConnection {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatalf("Failed to get underlying *sql.DB: %v", err)
	}

	return &GormDBAdapter{
		db:     db,
		sqlDB:  sqlDB,
		cfg:    cfg,
		dbType: cfg.Type,
		name:   name,
	}
}

// GetGormDB returns the underlying *gorm.DB instance.
// Intended for repository constructors that operate through GORM.
func (a *GormDBAdapter) GetGormDB() *gorm.DB {
	return a.db
}

// Name returns the logical connection name.
func (a *GormDBAdapter) Name() string {
	return a.name
}

// Type returns the database type.
func (a *GormDBAdapter) Type() string {
	return a.dbType
}

// Ping validates the connection.
func (a *GormDBAdapter) Ping(ctx context.Context) error {
	return a.sqlDB.PingContext(ctx)
}

// Close closes the connection.
func (a *GormDBAdapter) Close() error {
	if a.sqlDB != nil {
		return a.sqlDB.Close()
	}
	return nil
}

// Config returns the database configuration associated with this connection.
func (a *GormDBAdapter) Config() dbconfig.DatabaseConfig {
	return a.cfg
}

// GetSQLDB returns the underlying *sql.DB connection.
func (a *GormDBAdapter) GetSQLDB() (*sql.DB, error) {
	if a.sqlDB == nil {
		return nil, fmt.Errorf("no underlying sql.DB for connection %q", a.name)
	}
	return a.sqlDB, nil
}

// Verify interfaces
var _ dbadapter.DBConnection = (*GormDBAdapter)(nil)
