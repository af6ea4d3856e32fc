package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"position_engine/internal/modules/bootstrap"
	"position_engine/internal/modules/config"
	"position_engine/internal/modules/health"
	"position_engine/internal/modules/instruments"
	"position_engine/internal/modules/ledger"
	"position_engine/internal/modules/lifecycle"
	"position_engine/internal/modules/metrics"
	"position_engine/internal/modules/okx_client"
	"position_engine/internal/modules/okx_websocket"
	"position_engine/internal/modules/portfolio"
	"position_engine/internal/modules/postgres"
	"position_engine/internal/modules/reconciler"
	"position_engine/internal/modules/redis"
	"position_engine/internal/modules/safety"
	"position_engine/internal/modules/sizer"
	"position_engine/internal/modules/store"
	"position_engine/internal/modules/strategy"
	"position_engine/internal/notify"
	"position_engine/internal/runner"
	"position_engine/pkg/logger"
)

func main() {
	// до загрузки конфига пишем в консоль
	if err := logger.Init("info", false); err != nil {
		log.Fatal(err)
	}

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		redis.Module(),
		store.Module(),
		okx_client.Module(),
		okx_websocket.Module(),
		instruments.Module(),
		ledger.Module(),
		metrics.Module(),
		notify.Module(),
		sizer.Module(),
		safety.Module(),
		portfolio.Module(),
		lifecycle.Module(),
		reconciler.Module(),
		strategy.Module(),
		health.Module(),
		bootstrap.Module(),
		runner.Module(),
	)
	app.Run()
}
