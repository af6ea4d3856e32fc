package redis

import (
	"context"

	"go.uber.org/fx"

	"position_engine/internal/modules/config"
	"position_engine/internal/modules/redis/service"
)

// Module отдаёт клиент и менеджер блокировок; оба nil, если redis не нужен.
func Module() fx.Option {
	return fx.Module("redis",
		fx.Provide(
			func(ctx context.Context, lc fx.Lifecycle, cfg *config.Config) (*service.Client, error) {
				if !cfg.Redis.Needed(cfg.Store.Backend) {
					return nil, nil
				}
				c, err := service.New(ctx, service.ClientConfig{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				if err != nil {
					return nil, err
				}
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error { return c.Close() },
				})
				return c, nil
			},
			func(cfg *config.Config, c *service.Client) *service.LockManager {
				if c == nil || !cfg.Redis.Locks {
					return nil
				}
				return service.NewLockManager(c, cfg.Store.Namespace)
			},
		),
	)
}
