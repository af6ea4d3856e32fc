package notify

import (
	"context"

	"go.uber.org/fx"

	"position_engine/internal/modules/config"
	"position_engine/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			NewFromConfig,
			func(t *Telegram, l *Log) Notifier {
				if t != nil {
					return t
				}
				return l
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, t *Telegram) {
			if t == nil {
				return
			}
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error { return t.Start(ctx) },
				OnStop: func(context.Context) error {
					cancel()
					t.Stop()
					return nil
				},
			})
		}),
	)
}

// NewFromConfig возвращает nil *Telegram без токена; тогда работает Log.
func NewFromConfig(cfg *config.Config) (*Telegram, *Log) {
	if cfg.Telegram.Token == "" {
		return nil, NewLog()
	}
	t, err := NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		logger.Warn("telegram disabled: %v", err)
		return nil, NewLog()
	}
	return t, NewLog()
}
