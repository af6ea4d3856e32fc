package store

import (
	"fmt"

	"go.uber.org/fx"

	"position_engine/internal/modules/config"
	redis "position_engine/internal/modules/redis/service"
	"position_engine/internal/modules/store/service"
	"position_engine/pkg/db"
)

func Module() fx.Option {
	return fx.Module("store",
		fx.Provide(
			NewStore,
		),
	)
}

// NewStore выбирает бэкенд по store.backend.
func NewStore(cfg *config.Config, tm *db.PgTxManager, rc *redis.Client) (service.Store, error) {
	switch cfg.Store.Backend {
	case "postgres":
		if tm == nil {
			return nil, fmt.Errorf("store: postgres backend without a pool")
		}
		return service.NewPgStore(tm), nil
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("store: redis backend without a client")
		}
		return service.NewRedisStore(rc.Underlying(), cfg.Store.Namespace), nil
	default:
		return service.NewFileStore(cfg.Store.Path, cfg.Store.SafetyPath), nil
	}
}
