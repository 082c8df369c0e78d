// migrate - создаёт таблицу выбора инструмента и кладёт стартовый выбор.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"rsi_bot/internal/modules/config"
	"rsi_bot/internal/modules/selection/service"
	"rsi_bot/pkg/db"
)

func main() {
	seed := flag.String("seed", "", "instrument to store if the table is empty, default strategy.instrument")
	flag.Parse()

	if err := run(*seed); err != nil {
		panic(fmt.Errorf("migrate: %w", err))
	}
	fmt.Println("done")
}

func run(seed string) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if cfg.DB == "" {
		return errors.New("db_dsn is empty")
	}
	if seed == "" {
		seed = cfg.Strategy.Instrument
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.DB, MaxConns: 1})
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	tx := db.NewPgTxManager(pool)
	defer tx.Close()

	if err := service.NewPostgres(tx).Migrate(ctx, seed); err != nil {
		return errors.Wrap(err, "create trading_selection")
	}
	return nil
}
