package mysql

import (
	"go.uber.org/fx"

	dbadapter "github.com/ejcourts/predms/pkg/etl/adapter/database"
)

// Module exports the MySQL DBProvider for dependency injection.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewProvider,
			fx.As(new(dbadapter.DBProvider)),
			fx.ResultTags(`group:"`+dbadapter.DBProviderGroup+`"`),
		),
	),
)
