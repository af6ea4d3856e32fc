package runner

import (
	"context"

	"go.uber.org/fx"

	bootstrap "position_engine/internal/modules/bootstrap/service"
	"position_engine/internal/modules/config"
	health "position_engine/internal/modules/health/service"
	ledger "position_engine/internal/modules/ledger/service"
	lifecycle "position_engine/internal/modules/lifecycle/service"
	metrics "position_engine/internal/modules/metrics/service"
	okx_client "position_engine/internal/modules/okx_client/service"
	portfolio "position_engine/internal/modules/portfolio/service"
	reconciler "position_engine/internal/modules/reconciler/service"
	safety "position_engine/internal/modules/safety/service"
	strategy "position_engine/internal/modules/strategy/service"
	"position_engine/internal/notify"
	"position_engine/pkg/logger"
)

type params struct {
	fx.In

	Config     *config.Config
	Exchange   okx_client.Exchange
	Evaluator  *strategy.Evaluator
	Engine     *lifecycle.Engine
	Reconciler *reconciler.Reconciler
	Gate       *safety.Gate
	Portfolio  *portfolio.Portfolio
	Ledger     *ledger.Ledger
	State      *health.State
	Metrics    *metrics.Metrics
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			func(p params) *Runner {
				return New(Deps{
					Config:     p.Config,
					Market:     p.Exchange,
					Signals:    p.Evaluator,
					Engine:     p.Engine,
					Reconciler: p.Reconciler,
					Gate:       p.Gate,
					Journal:    p.Portfolio,
					Ledger:     p.Ledger,
					Health:     p.State,
					Metrics:    p.Metrics,
				})
			},
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			shutdowner fx.Shutdowner,
			r *Runner,
			startup *bootstrap.Startup,
			tg *notify.Telegram,
			l *ledger.Ledger,
		) {
			if tg != nil {
				tg.Attach(l, r)
			}

			runCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						if err := startup.Run(runCtx); err != nil {
							logger.Error("[BOOT] %v", err)
							_ = shutdowner.Shutdown(fx.ExitCode(1))
							return
						}
						r.Run(runCtx)
					}()
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
