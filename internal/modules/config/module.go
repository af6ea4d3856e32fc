package config

import (
	"context"

	"go.uber.org/fx"

	"position_engine/pkg/logger"
	"position_engine/pkg/tracing"
)

// Module регистрирует конфиг как fx-провайдер и настраивает логгер и трейсер
// до того, как поднимутся остальные модули.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
		),
		fx.Invoke(initObservability),
	)
}

func initObservability(lc fx.Lifecycle, cfg *Config) error {
	if err := logger.Init(cfg.Service.LogLevel, cfg.Service.LogJSON); err != nil {
		return err
	}
	logger.SetServiceName(cfg.Service.Name)

	_, closer, err := tracing.InitTracer(tracing.Config{
		Enabled: cfg.Tracing.Enabled,
		Service: cfg.Service.Name,
		Host:    cfg.Tracing.Host,
		Port:    cfg.Tracing.Port,
	})
	if err != nil {
		logger.Warn("tracing disabled: %v", err)
		return nil
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closer()
			logger.Sync()
			return nil
		},
	})
	return nil
}
