package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx"

	capital "rsi_bot/internal/modules/capital_client"
	"rsi_bot/internal/modules/config"
	"rsi_bot/internal/modules/health"
	"rsi_bot/internal/modules/postgres"
	"rsi_bot/internal/modules/selection"
	"rsi_bot/internal/modules/strategy"
	telegram "rsi_bot/internal/modules/telegram_bot"
	"rsi_bot/internal/modules/telemetry"
	"rsi_bot/internal/runner"
)

func main() {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		fx.WithLogger(telemetry.EventLogger),
		fx.StartTimeout(30*time.Second),
		fx.StopTimeout(45*time.Second),

		config.Module(),
		telemetry.Module(),
		postgres.Module(),
		selection.Module(),
		capital.Module(),
		health.Module(),
		telegram.Module(),
		strategy.Module(),
		runner.Module(),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	stopCtx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Fatal(err)
	}
}
