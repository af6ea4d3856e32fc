package portfolio

import (
	"context"

	"go.uber.org/fx"

	"position_engine/internal/modules/config"
	"position_engine/internal/modules/portfolio/service"
)

func Module() fx.Option {
	return fx.Module("portfolio",
		fx.Provide(
			NewPortfolio,
		),
		fx.Invoke(func(lc fx.Lifecycle, p *service.Portfolio) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error { return p.Load() },
			})
		}),
	)
}

// NewPortfolio подключает S3-архив, если он включён.
func NewPortfolio(ctx context.Context, cfg *config.Config) (*service.Portfolio, error) {
	var archiver service.Archiver
	if cfg.Portfolio.S3.Enabled {
		a, err := service.NewS3Archiver(ctx, cfg.Portfolio.S3)
		if err != nil {
			return nil, err
		}
		archiver = a
	}
	return service.NewPortfolio(cfg.Portfolio.JournalPath, archiver), nil
}
