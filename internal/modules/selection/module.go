package selection

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"rsi_bot/internal/modules/config"
	"rsi_bot/internal/modules/selection/service"
	"rsi_bot/pkg/db"
)

// NewStore: с postgres выбор переживает рестарт, без него живёт в памяти.
func NewStore(lc fx.Lifecycle, cfg *config.Config, tx *db.PgTxManager, log *zap.Logger) service.Store {
	seed := cfg.Strategy.Instrument
	if tx == nil {
		log.Info("selection store: memory", zap.String("instrument", seed))
		return service.NewMemory(seed)
	}

	pg := service.NewPostgres(tx)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return pg.Migrate(ctx, seed)
		},
	})
	log.Info("selection store: postgres")
	return pg
}

func Module() fx.Option {
	return fx.Module("selection",
		fx.Provide(NewStore),
	)
}
