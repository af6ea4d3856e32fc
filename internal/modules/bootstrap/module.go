package bootstrap

import (
	"go.uber.org/fx"

	bootstrap "position_engine/internal/modules/bootstrap/service"
	"position_engine/internal/modules/config"
	health "position_engine/internal/modules/health/service"
	instruments "position_engine/internal/modules/instruments/service"
	reconciler "position_engine/internal/modules/reconciler/service"
	"position_engine/internal/notify"
)

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			func(
				cfg *config.Config,
				reg *instruments.Registry,
				r *reconciler.Reconciler,
				st *health.State,
				n notify.Notifier,
			) *bootstrap.Startup {
				return bootstrap.NewStartup(reg, r, st, n, cfg.PaperTrading)
			},
		),
	)
}
