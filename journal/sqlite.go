package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/tradeledger/market"
)

// SQLite is the default store. It is a Sink, a TradeSource and a
// market.PriceSource.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens the journal at path. Write transactions take the database
// lock when they begin, so batches from concurrent processes commit one at a
// time.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

const upsertTrade = `
	INSERT INTO trades
	(trade_id, account_id, external_id, source, symbol, direction, lots, entry_price, exit_price,
	 open_time, close_time, points, profit, commission, swap, net_result, complete)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(account_id, external_id) DO UPDATE SET
		source = excluded.source,
		symbol = excluded.symbol,
		direction = excluded.direction,
		lots = excluded.lots,
		entry_price = excluded.entry_price,
		exit_price = excluded.exit_price,
		open_time = excluded.open_time,
		close_time = excluded.close_time,
		points = excluded.points,
		profit = excluded.profit,
		commission = excluded.commission,
		swap = excluded.swap,
		net_result = excluded.net_result,
		complete = excluded.complete`

const upsertTransaction = `
	INSERT INTO transactions
	(tx_id, account_id, external_id, source, type, amount, open_time, close_time, complete)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(account_id, external_id) DO UPDATE SET
		source = excluded.source,
		type = excluded.type,
		amount = excluded.amount,
		open_time = excluded.open_time,
		close_time = excluded.close_time,
		complete = excluded.complete`

// SaveBatch writes every record of b in one transaction. Nothing is stored
// if any statement fails.
func (j *SQLite) SaveBatch(ctx context.Context, b Batch) (err error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	tstmt, err := tx.PrepareContext(ctx, upsertTrade)
	if err != nil {
		return err
	}
	defer tstmt.Close()

	for _, t := range b.Trades {
		if _, err = tstmt.ExecContext(ctx,
			t.ID, t.Account, t.ExternalID, t.Source, t.Symbol, string(t.Direction),
			t.Lots.String(), t.EntryPrice.String(), t.ExitPrice.String(),
			t.OpenTime.UTC(), nullTime(t.CloseTime),
			t.Points.String(), t.Profit.String(), t.Commission.String(), t.Swap.String(),
			t.NetResult.String(), t.Complete,
		); err != nil {
			return fmt.Errorf("trade %s: %w", t.ExternalID, err)
		}
	}

	xstmt, err := tx.PrepareContext(ctx, upsertTransaction)
	if err != nil {
		return err
	}
	defer xstmt.Close()

	for _, x := range b.Transactions {
		if _, err = xstmt.ExecContext(ctx,
			x.ID, x.Account, x.ExternalID, x.Source, string(x.Type), x.Amount.String(),
			x.OpenTime.UTC(), nullTime(x.CloseTime), x.Complete,
		); err != nil {
			return fmt.Errorf("transaction %s: %w", x.ExternalID, err)
		}
	}

	return tx.Commit()
}

// SavePrices stores a price series, replacing points with the same time.
func (j *SQLite) SavePrices(ctx context.Context, symbol string, prices []market.MarketPrice) (err error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO market_prices (symbol, time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range prices {
		if _, err = stmt.ExecContext(ctx, symbol, p.Time.UTC(), p.Open, p.High, p.Low, p.Close, p.Volume); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Prices implements market.PriceSource.
func (j *SQLite) Prices(ctx context.Context, symbol string, rng market.Range) ([]market.MarketPrice, error) {
	q := `SELECT time, open, high, low, close, volume FROM market_prices WHERE symbol = ?`
	args := []any{symbol}
	if !rng.IsZero() {
		q += ` AND time >= ? AND time < ?`
		args = append(args, rng.Start.UTC(), rng.End.UTC())
	}
	q += ` ORDER BY time ASC`

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.MarketPrice
	for rows.Next() {
		var p market.MarketPrice
		if err := rows.Scan(&p.Time, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
