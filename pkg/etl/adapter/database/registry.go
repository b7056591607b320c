package database

import (
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"

	dbconfig "github.com/ejcourts/predms/pkg/etl/adapter/database/config"
	config "github.com/ejcourts/predms/pkg/etl/core/config"
	exception "github.com/ejcourts/predms/pkg/etl/support/util/exception"
)

const registryModule = "database"

// ProviderRegistry resolves named connections to the DBProvider of the
// matching database type. The connection's type is read from its
// configuration block, so callers only deal in logical names.
type ProviderRegistry struct {
	cfg       *config.Config
	providers map[string]DBProvider
}

// NewProviderRegistry creates a ProviderRegistry over the given providers.
func NewProviderRegistry(cfg *config.Config, providers []DBProvider) *ProviderRegistry {
	byType := make(map[string]DBProvider, len(providers))
	for _, p := range providers {
		byType[p.Type()] = p
	}
	return &ProviderRegistry{cfg: cfg, providers: byType}
}

// Connect resolves and establishes the connection with the given logical
// name. Missing configuration blocks and unknown database types surface as
// CONFIG-classified errors before any SQL runs.
func (r *ProviderRegistry) Connect(name string) (DBConnection, error) {
	rawConfig, ok := r.cfg.PreDMS.AdapterConfigs[name]
	if !ok {
		return nil, exception.NewConfigError(registryModule, "database configuration %q not found", name)
	}

	var dbCfg dbconfig.DatabaseConfig
	if err := mapstructure.Decode(rawConfig, &dbCfg); err != nil {
		return nil, exception.NewETLError(registryModule, "failed to decode database config for "+name, err, exception.ClassConfig)
	}

	provider, ok := r.providers[dbCfg.Type]
	if ok {
		return provider.GetConnection(name)
	}
	return nil, exception.NewConfigError(registryModule, "no provider registered for database type %q (connection %q)", dbCfg.Type, name)
}

// CloseAll closes every connection held by every provider, aggregating
// individual close errors.
func (r *ProviderRegistry) CloseAll() error {
	var result *multierror.Error
	for _, p := range r.providers {
		if err := p.CloseAll(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
