package runner

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"rsi_bot/internal/modules/config"
	healthsvc "rsi_bot/internal/modules/health/service"
	strategysvc "rsi_bot/internal/modules/strategy/service"
)

func NewScheduler(cfg *config.Config, engine *strategysvc.Engine, log *zap.Logger) *Scheduler {
	return New(Config{
		Interval:     cfg.Scheduler.Interval,
		InitialDelay: cfg.Scheduler.InitialDelay,
	}, engine, log)
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			NewScheduler, // *Scheduler
		),
		fx.Invoke(func(lc fx.Lifecycle, s *Scheduler, state *healthsvc.State) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					// контекст старта fx живёт только на время OnStart, тикам нужен свой
					if err := s.Start(context.Background()); err != nil {
						return err
					}
					state.SetReady(true)
					return nil
				},
				OnStop: func(ctx context.Context) error {
					state.SetReady(false)
					return s.Stop(ctx)
				},
			})
		}),
	)
}
