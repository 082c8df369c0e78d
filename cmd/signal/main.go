// signal - разовый расчёт RSI по инструменту без торговли.
//
//	go run ./cmd/signal -epic GOLD
//	go run ./cmd/signal -epic GOLD -chart -resolution 4h -max 50
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"rsi_bot/internal/helper"
	"rsi_bot/internal/models"
	capital "rsi_bot/internal/modules/capital_client"
	capitalsvc "rsi_bot/internal/modules/capital_client/service"
	"rsi_bot/internal/modules/config"
	"rsi_bot/internal/modules/selection/service"
	strategymod "rsi_bot/internal/modules/strategy"
	strategysvc "rsi_bot/internal/modules/strategy/service"
	"rsi_bot/pkg/logger"
)

func main() {
	var (
		epic       = flag.String("epic", "", "instrument epic, default strategy.instrument")
		chart      = flag.Bool("chart", false, "print price bars instead of the signal")
		resolution = flag.String("resolution", "", "chart resolution (5m, 4h, HOUR_4 ...)")
		max        = flag.Int("max", 0, "chart bars")
		timeout    = flag.Duration("timeout", 30*time.Second, "overall timeout")
	)
	flag.Parse()

	if err := run(*epic, *chart, *resolution, *max, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(epic string, chart bool, resolution string, max int, timeout time.Duration) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	log, err := logger.New("warn", false)
	if err != nil {
		return errors.Wrap(err, "logger")
	}
	defer func() { _ = log.Sync() }()

	if epic == "" {
		epic = cfg.Strategy.Instrument
	}
	if epic == "" {
		return errors.New("no epic: pass -epic or set strategy.instrument")
	}

	engineCfg, err := strategymod.NewConfig(cfg)
	if err != nil {
		return errors.Wrap(err, "strategy config")
	}
	client := capital.NewClient(cfg, log)
	engine := strategysvc.NewEngine(
		engineCfg,
		client,
		strategysvc.NewStore(),
		service.NewMemory(epic),
		nil,
		log,
	)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var out any
	if chart {
		out, err = engine.Chart(ctx, epic, helper.NormResolution(resolution), max)
	} else {
		out, err = signal(ctx, engine, client, epic)
	}
	if err != nil {
		return err
	}

	body, err := sonic.ConfigStd.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal")
	}
	fmt.Println(string(body))
	return nil
}

// signal: память стратегии у разового запуска пустая, позицию берём у брокера.
func signal(ctx context.Context, engine *strategysvc.Engine, client *capitalsvc.Client, epic string) (models.Signal, error) {
	sig, err := engine.CurrentSignal(ctx, epic)
	if err != nil {
		return sig, err
	}
	sig.Position, err = client.PositionOf(ctx, epic)
	if err != nil {
		return sig, errors.Wrap(err, "broker position")
	}
	return sig, nil
}
