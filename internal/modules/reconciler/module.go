package reconciler

import (
	"go.uber.org/fx"

	"position_engine/internal/modules/config"
	ledger "position_engine/internal/modules/ledger/service"
	metrics "position_engine/internal/modules/metrics/service"
	okx_client "position_engine/internal/modules/okx_client/service"
	"position_engine/internal/modules/reconciler/service"
	store "position_engine/internal/modules/store/service"
	"position_engine/internal/notify"
)

func Module() fx.Option {
	return fx.Module("reconciler",
		fx.Provide(
			func(
				cfg *config.Config,
				l *ledger.Ledger,
				ex okx_client.Exchange,
				st store.Store,
				n notify.Notifier,
				m *metrics.Metrics,
			) *service.Reconciler {
				return service.NewReconciler(cfg, l, ex, st, n, m)
			},
		),
	)
}
