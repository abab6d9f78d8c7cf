package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rustyeddy/tradeledger/internal/cache"
	"github.com/rustyeddy/tradeledger/internal/storage/clickhouse"
	"github.com/rustyeddy/tradeledger/internal/storage/postgres"
	"github.com/rustyeddy/tradeledger/journal"
	"github.com/rustyeddy/tradeledger/market"
)

// journalStore is what the commands need from either journal driver.
type journalStore interface {
	journal.Sink
	journal.TradeSource
	GetTrade(ctx context.Context, tradeID string) (journal.Trade, error)
	ListTradesClosedBetween(ctx context.Context, start, end time.Time) ([]journal.Trade, error)
	ListTransactions(ctx context.Context, account string) ([]journal.Transaction, error)
}

var (
	_ journalStore = (*journal.SQLite)(nil)
	_ journalStore = (*postgres.JournalStore)(nil)
)

func openJournal(ctx context.Context) (journalStore, func(), error) {
	switch cfg.Journal.Driver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Journal.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewJournalStore(pool), pool.Close, nil
	default:
		j, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		return j, func() { _ = j.Close() }, nil
	}
}

// priceStore is a price source that can also be loaded.
type priceStore interface {
	market.PriceSource
	SavePrices(ctx context.Context, symbol string, prices []market.MarketPrice) error
}

// openPrices returns the configured price store. The file source is read
// only, so it is handled by the callers.
func openPrices(ctx context.Context) (priceStore, func(), error) {
	switch cfg.Prices.Source {
	case "clickhouse":
		conn, err := clickhouse.NewConn(ctx, cfg.Prices.ClickHouseDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := conn.Migrate(ctx); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return clickhouse.NewPriceStore(conn), func() { _ = conn.Close() }, nil
	case "sqlite":
		j, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		return j, func() { _ = j.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("price source %q cannot store prices", cfg.Prices.Source)
	}
}

// openCache returns nil when the cache is disabled or unreachable; reports
// are then built every time.
func openCache(ctx context.Context) *cache.ReportCache {
	if !cfg.Cache.Enabled {
		return nil
	}
	c, err := cache.New(ctx, cache.Options{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
		TTL:      cfg.Cache.TTL,
	}, mtr)
	if err != nil {
		slog.Warn("report cache disabled", slog.Any("error", err))
		return nil
	}
	return c
}
