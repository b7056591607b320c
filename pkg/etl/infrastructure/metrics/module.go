package metrics

import (
	"go.uber.org/fx"

	coremetrics "github.com/ejcourts/predms/pkg/etl/core/metrics"
)

// Module exports the Prometheus MetricRecorder for dependency injection.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewPrometheusRecorder,
			fx.As(new(coremetrics.MetricRecorder)),
		),
	),
)
