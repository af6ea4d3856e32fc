package strategy

import (
	"go.uber.org/fx"

	"position_engine/internal/modules/config"
	instruments "position_engine/internal/modules/instruments/service"
	"position_engine/internal/modules/strategy/service"
	"position_engine/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			func(cfg *config.Config, reg *instruments.Registry) *service.Evaluator {
				e := service.NewEvaluator(cfg, reg)
				logger.Info("[STRAT] %s, needs %d candles", e.Name(), e.MinCandles())
				return e
			},
		),
	)
}
