package instruments

import (
	"go.uber.org/fx"

	"position_engine/internal/modules/config"
	"position_engine/internal/modules/instruments/service"
	okx_client "position_engine/internal/modules/okx_client/service"
)

func Module() fx.Option {
	return fx.Module("instruments",
		fx.Provide(
			func(cfg *config.Config, client *okx_client.Client) *service.Registry {
				return service.NewRegistry(cfg, client)
			},
		),
	)
}
