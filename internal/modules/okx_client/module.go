package okx_client

import (
	"go.uber.org/fx"

	"position_engine/internal/modules/config"
	"position_engine/internal/modules/okx_client/service"
)

func Module() fx.Option {
	return fx.Module("okx_client",
		fx.Provide(
			service.NewClient,
			NewExchange,
		),
	)
}

// NewExchange picks the live adapter or the paper simulator.
func NewExchange(cfg *config.Config, client *service.Client) service.Exchange {
	if cfg.PaperTrading {
		return service.NewPaperExchange(client, cfg.Safety.StartingEquity, cfg.Risk.PaperAvailableFraction)
	}
	return client
}
