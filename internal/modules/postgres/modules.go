package postgres

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"position_engine/internal/modules/config"
	"position_engine/pkg/db"
)

// Module отдаёт *db.PgTxManager; nil, если хранилище не postgres.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, lc fx.Lifecycle, cfg *config.Config) (*db.PgTxManager, error) {
				if cfg.Store.Backend != "postgres" {
					return nil, nil
				}

				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				tm := db.NewPgTxManager(poolMaster)
				if err := tm.Ping(ctx); err != nil {
					tm.Close()
					return nil, fmt.Errorf("postgres ping: %w", err)
				}
				if err := db.Migrate(ctx, tm.Conn()); err != nil {
					return nil, err
				}

				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						tm.Close()
						return nil
					},
				})
				return tm, nil
			},
		),
	)
}
