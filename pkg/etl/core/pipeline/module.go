package pipeline

import (
	"go.uber.org/fx"
)

// Module exports the pipeline definition and scope registry for dependency
// injection. The Orchestrator itself is assembled at startup once the target
// connection is established.
var Module = fx.Options(
	fx.Provide(LoadDefinition),
	fx.Provide(NewScopeRegistry),
)
