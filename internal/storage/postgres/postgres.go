// Package postgres stores journal records in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool.Pool.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects and pings the server.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	external_id TEXT NOT NULL,
	source TEXT NOT NULL,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	lots NUMERIC NOT NULL,
	entry_price NUMERIC NOT NULL,
	exit_price NUMERIC NOT NULL,
	open_time TIMESTAMPTZ NOT NULL,
	close_time TIMESTAMPTZ,
	points NUMERIC NOT NULL,
	profit NUMERIC NOT NULL,
	commission NUMERIC NOT NULL,
	swap NUMERIC NOT NULL,
	net_result NUMERIC NOT NULL,
	complete BOOLEAN NOT NULL,
	UNIQUE (account_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_trades_close ON trades (account_id, close_time);

CREATE TABLE IF NOT EXISTS transactions (
	tx_id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	external_id TEXT NOT NULL,
	source TEXT NOT NULL,
	type TEXT NOT NULL,
	amount NUMERIC NOT NULL,
	open_time TIMESTAMPTZ NOT NULL,
	close_time TIMESTAMPTZ,
	complete BOOLEAN NOT NULL,
	UNIQUE (account_id, external_id)
);
`

// Migrate creates the journal tables if they do not exist.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
