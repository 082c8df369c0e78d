package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"rsi_bot/pkg/db"
)

const (
	createTableSQL = `
CREATE TABLE IF NOT EXISTS trading_selection (
    id         SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    instrument TEXT        NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	seedSQL = `
INSERT INTO trading_selection (id, instrument) VALUES (1, $1)
ON CONFLICT (id) DO NOTHING`

	upsertSQL = `
INSERT INTO trading_selection (id, instrument, updated_at) VALUES (1, $1, now())
ON CONFLICT (id) DO UPDATE SET instrument = EXCLUDED.instrument, updated_at = EXCLUDED.updated_at`

	selectSQL = `SELECT instrument FROM trading_selection WHERE id = 1`
)

// Postgres хранит выбор в одной строке trading_selection, переживает рестарт.
type Postgres struct {
	tx db.TxManager
}

var _ Store = (*Postgres)(nil)

func NewPostgres(tx db.TxManager) *Postgres {
	return &Postgres{tx: tx}
}

// Migrate создаёт таблицу и, если строки ещё нет, кладёт seed.
func (p *Postgres) Migrate(ctx context.Context, seed string) error {
	seed = strings.TrimSpace(seed)
	return p.tx.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		if _, err := tx.Exec(ctxTx, createTableSQL); err != nil {
			return fmt.Errorf("create trading_selection: %w", err)
		}
		if seed == "" {
			return nil
		}
		if _, err := tx.Exec(ctxTx, seedSQL, seed); err != nil {
			return fmt.Errorf("seed trading_selection: %w", err)
		}
		return nil
	})
}

func (p *Postgres) Get(ctx context.Context) (string, error) {
	var instrument string
	err := p.tx.RunRepeatableRead(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		return tx.QueryRow(ctxTx, selectSQL).Scan(&instrument)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get selection: %w", err)
	}
	return instrument, nil
}

func (p *Postgres) Set(ctx context.Context, instrument string) error {
	instrument = strings.TrimSpace(instrument)
	return p.tx.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		if _, err := tx.Exec(ctxTx, upsertSQL, instrument); err != nil {
			return fmt.Errorf("upsert selection: %w", err)
		}
		return nil
	})
}
