package database

import (
	"go.uber.org/fx"
)

// Module exports the ProviderRegistry, collecting every DBProvider
// registered under the db_providers group.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewProviderRegistry,
			fx.ParamTags(``, `group:"`+DBProviderGroup+`"`),
		),
	),
)
