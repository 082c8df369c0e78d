package telegram

import (
	"context"

	"go.uber.org/fx"

	capitalsvc "rsi_bot/internal/modules/capital_client/service"
	strategysvc "rsi_bot/internal/modules/strategy/service"
	"rsi_bot/internal/modules/telegram_bot/service"
)

func Module() fx.Option {
	return fx.Module("telegram",
		// 1. Клиент бота: отправка сообщений, он же Reporter для тиков
		fx.Provide(
			service.NewTelegram, // func(*config.Config, *zap.Logger) (*service.Telegram, error)
		),

		// 2. Команды: спрашивают стратегию и брокера
		fx.Provide(
			func(e *strategysvc.Engine) service.Trader { return e },
			func(c *capitalsvc.Client) service.Broker { return c },
			service.NewHandler,
		),

		// Запуск основного цикла через Lifecycle
		fx.Invoke(
			func(lc fx.Lifecycle, t *service.Telegram, h *service.Handler) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						h.Start(context.Background())
						t.SendService(ctx, "▶️ RSI-бот запущен")
						return nil
					},
					OnStop: func(ctx context.Context) error {
						t.SendService(ctx, "⏹ RSI-бот остановлен")
						h.Stop()
						return nil
					},
				})
			},
		),
	)
}
