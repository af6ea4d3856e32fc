package metrics

import (
	"go.uber.org/fx"

	"position_engine/internal/modules/metrics/service"
)

func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(
			service.New,
		),
	)
}
