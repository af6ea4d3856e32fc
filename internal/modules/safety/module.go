package safety

import (
	"context"

	"go.uber.org/fx"

	"position_engine/internal/modules/config"
	instruments "position_engine/internal/modules/instruments/service"
	metrics "position_engine/internal/modules/metrics/service"
	okx_client "position_engine/internal/modules/okx_client/service"
	"position_engine/internal/modules/safety/service"
	store "position_engine/internal/modules/store/service"
	"position_engine/internal/notify"
)

func Module() fx.Option {
	return fx.Module("safety",
		fx.Provide(
			func(
				cfg *config.Config,
				ex okx_client.Exchange,
				st store.Store,
				reg *instruments.Registry,
				n notify.Notifier,
				m *metrics.Metrics,
			) *service.Gate {
				return service.NewGate(cfg, ex, st, reg, n, m)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, g *service.Gate) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error { return g.Load(ctx) },
			})
		}),
	)
}
