package gorm

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"

	dbadapter "github.com/ejcourts/predms/pkg/etl/adapter/database"
	dbconfig "github.com/ejcourts/predms/pkg/etl/adapter/database/config"
	config "github.com/ejcourts/predms/pkg/etl/core/config"
	logger "github.com/ejcourts/predms/pkg/etl/support/util/logger"

	"gorm.io/gorm"
)

// DialectorFactory generates a gorm.Dialector from a dbconfig.DatabaseConfig.
type DialectorFactory func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given database type.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("Dialector for type '%s' already registered. Overwriting.", dbType)
	}
	dialectorRegistry[dbType] = factory
}

// GetDialectorFactory retrieves the DialectorFactory for the specified DB type.
func GetDialectorFactory(dbType string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[dbType]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database type: %s", dbType)
	}
	return factory, nil
}

// BaseProvider provides common functionality for DBProvider implementations.
type BaseProvider struct {
	cfg    *config.Config
	dbType string
	// connections maps logical connection names to established connections.
	connections map[string]dbadapter.DBConnection
	mu          sync.RWMutex
}

// NewBaseProvider creates a new BaseProvider for one database type.
func NewBaseProvider(cfg *config.Config, dbType string) *BaseProvider {
	return &BaseProvider{
		cfg:         cfg,
		dbType:      dbType,
		connections: make(map[string]dbadapter.DBConnection),
	}
}

// Type returns the database type.
func (p *BaseProvider) Type() string {
	return p.dbType
}

// GetConnection retrieves an existing connection or establishes a new one.
func (p *BaseProvider) GetConnection(name string) (dbadapter.DBConnection, error) {
	p.mu.RLock()
	conn, ok := p.connections[name]
	p.mu.RUnlock()

	if ok {
		return conn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double check under the write lock.
	conn, ok = p.connections[name]
	if ok {
		return conn, nil
	}

	return p.createAndStoreConnection(name)
}

// createAndStoreConnection establishes a new connection and stores it.
func (p *BaseProvider) createAndStoreConnection(name string) (dbadapter.DBConnection, error) {
	var dbCfg dbconfig.DatabaseConfig
	rawConfig, ok := p.cfg.PreDMS.AdapterConfigs[name]
	if !ok {
		return nil, fmt.Errorf("database configuration '%s' not found", name)
	}
	if err := mapstructure.Decode(rawConfig, &dbCfg); err != nil {
		return nil, fmt.Errorf("failed to decode database config for '%s': %w", name, err)
	}

	if dbCfg.Type != p.dbType {
		return nil, fmt.Errorf("provider type mismatch: expected '%s', got '%s' for connection '%s'", p.dbType, dbCfg.Type, name)
	}

	gormDB, err := p.connect(dbCfg)
	if err != nil {
		return nil, err
	}

	conn := NewGormDBAdapter(gormDB, dbCfg, name)
	p.connections[name] = conn
	logger.Infof("Established new DB connection: %s (%s)", name, p.dbType)

	return conn, nil
}

// connect establishes a GORM connection based on DatabaseConfig.
func (p *BaseProvider) connect(dbCfg dbconfig.DatabaseConfig) (*gorm.DB, error) {
	dialectorFactory, err := GetDialectorFactory(dbCfg.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to get dialector factory for %s: %w", dbCfg.Type, err)
	}
	dialector, err := dialectorFactory(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialector for %s: %w", dbCfg.Type, err)
	}

	// GORM's own logging stays silent; SQL tracing belongs to the pipeline logger.
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(string(config.LogLevelSilent)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(dbCfg.Pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(dbCfg.Pool.MaxIdleConns)
	if dbCfg.Pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbCfg.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}

	return db, nil
}

// CloseAll closes all connections managed by this provider.
func (p *BaseProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result *multierror.Error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			logger.Errorf("Failed to close connection '%s': %v", name, err)
			result = multierror.Append(result, err)
		}
		delete(p.connections, name)
	}
	return result.ErrorOrNil()
}

// Verify interfaces
var _ dbadapter.DBProvider = (*BaseProvider)(nil)
