package sizer

import (
	"go.uber.org/fx"

	"position_engine/internal/modules/config"
	instruments "position_engine/internal/modules/instruments/service"
	okx_client "position_engine/internal/modules/okx_client/service"
	"position_engine/internal/modules/sizer/service"
)

func Module() fx.Option {
	return fx.Module("sizer",
		fx.Provide(
			func(cfg *config.Config, ex okx_client.Exchange, reg *instruments.Registry) *service.Sizer {
				return service.NewSizer(cfg, ex, ex, reg)
			},
		),
	)
}
