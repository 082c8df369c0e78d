package strategy

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"rsi_bot/internal/helper"
	"rsi_bot/internal/metrics"
	capitalsvc "rsi_bot/internal/modules/capital_client/service"
	"rsi_bot/internal/modules/config"
	healthsvc "rsi_bot/internal/modules/health/service"
	selectionsvc "rsi_bot/internal/modules/selection/service"
	"rsi_bot/internal/modules/strategy/service"
	telegramsvc "rsi_bot/internal/modules/telegram_bot/service"
	"rsi_bot/internal/notify"
	rsi "rsi_bot/internal/strategy"
)

func NewConfig(cfg *config.Config) (service.Config, error) {
	smoothing, err := rsi.ParseSmoothing(cfg.Strategy.Smoothing)
	if err != nil {
		return service.Config{}, err
	}
	c := service.DefaultConfig()
	c.Resolution = helper.NormResolution(cfg.Strategy.Resolution)
	c.MaxBars = cfg.Strategy.MaxBars
	c.Calculator = rsi.NewCalculator(cfg.Strategy.RSIPeriod, smoothing)
	c.Thresholds = rsi.Thresholds{Overbought: cfg.Strategy.Overbought, Oversold: cfg.Strategy.Oversold}
	c.OrderTimeout = cfg.Strategy.OrderTimeout
	return c, nil
}

// NewReporter - куда уходит каждый тик: лог, метрики, health, телеграм.
func NewReporter(log *zap.Logger, state *healthsvc.State, tg *telegramsvc.Telegram) service.Reporter {
	return notify.Multi{notify.NewLog(log), notify.Func(metrics.Report), state, tg}
}

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			NewConfig,
			NewReporter,
			func(c *capitalsvc.Client) service.Gateway { return c },
			func(s selectionsvc.Store) service.Selection { return s },
			service.NewStore,  // *service.Store
			service.NewEngine, // *service.Engine
		),
	)
}
