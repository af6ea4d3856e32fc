package okx_websocket

import (
	"context"

	"go.uber.org/fx"

	"position_engine/internal/modules/config"
	okx_client "position_engine/internal/modules/okx_client/service"
	"position_engine/internal/modules/okx_websocket/service"
)

// Module поднимает кэш последних цен по каналу tickers.
func Module() fx.Option {
	return fx.Module("okx_websocket",
		fx.Provide(
			service.NewPriceFeed,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, feed *service.PriceFeed, client *okx_client.Client) {
			if !cfg.PriceFeed.Enabled {
				return
			}
			client.SetPriceSource(feed)

			runCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go feed.Run(runCtx)
					return nil
				},
				OnStop: func(ctx context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
