package ledger

import (
	"go.uber.org/fx"

	"position_engine/internal/modules/config"
	"position_engine/internal/modules/ledger/service"
	redis "position_engine/internal/modules/redis/service"
)

func Module() fx.Option {
	return fx.Module("ledger",
		fx.Provide(
			func(cfg *config.Config, lm *redis.LockManager) *service.Ledger {
				if lm == nil {
					return service.NewLedger(service.NewLocalLocker())
				}
				return service.NewLedger(service.NewDistributedLocker(lm, cfg.Redis.LockTTL))
			},
		),
	)
}
