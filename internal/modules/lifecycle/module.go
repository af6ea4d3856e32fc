package lifecycle

import (
	"go.uber.org/fx"

	"position_engine/internal/modules/config"
	instruments "position_engine/internal/modules/instruments/service"
	ledger "position_engine/internal/modules/ledger/service"
	"position_engine/internal/modules/lifecycle/service"
	metrics "position_engine/internal/modules/metrics/service"
	okx_client "position_engine/internal/modules/okx_client/service"
	portfolio "position_engine/internal/modules/portfolio/service"
	safety "position_engine/internal/modules/safety/service"
	sizer "position_engine/internal/modules/sizer/service"
	store "position_engine/internal/modules/store/service"
	"position_engine/internal/notify"
)

type params struct {
	fx.In

	Config    *config.Config
	Ledger    *ledger.Ledger
	Exchange  okx_client.Exchange
	Sizer     *sizer.Sizer
	Gate      *safety.Gate
	Store     store.Store
	Portfolio *portfolio.Portfolio
	Registry  *instruments.Registry
	Notify    notify.Notifier
	Metrics   *metrics.Metrics
}

func Module() fx.Option {
	return fx.Module("lifecycle",
		fx.Provide(
			func(p params) *service.Engine {
				return service.NewEngine(service.Deps{
					Config:   p.Config,
					Ledger:   p.Ledger,
					Exchange: p.Exchange,
					Sizer:    p.Sizer,
					Gate:     p.Gate,
					Store:    p.Store,
					Sink:     p.Portfolio,
					Specs:    p.Registry,
					Notify:   p.Notify,
					Metrics:  p.Metrics,
				})
			},
		),
	)
}
