package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const tradeColumns = `trade_id, account_id, external_id, source, symbol, direction, lots, entry_price, exit_price,
	open_time, close_time, points, profit, commission, swap, net_result, complete`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (Trade, error) {
	var (
		rec   Trade
		dir   string
		close sql.NullTime
	)
	err := s.Scan(
		&rec.ID,
		&rec.Account,
		&rec.ExternalID,
		&rec.Source,
		&rec.Symbol,
		&dir,
		&rec.Lots,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.OpenTime,
		&close,
		&rec.Points,
		&rec.Profit,
		&rec.Commission,
		&rec.Swap,
		&rec.NetResult,
		&rec.Complete,
	)
	if err != nil {
		return Trade{}, err
	}
	rec.Direction = Direction(dir)
	if close.Valid {
		rec.CloseTime = close.Time
	}
	return rec, nil
}

// GetTrade returns a single trade by its ID.
func (j *SQLite) GetTrade(ctx context.Context, tradeID string) (Trade, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)

	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Trade{}, fmt.Errorf("trade %q: %w", tradeID, ErrNotFound)
		}
		return Trade{}, err
	}
	return rec, nil
}

// ListTradesClosedBetween returns trades of every account whose close_time
// is within [start, end).
func (j *SQLite) ListTradesClosedBetween(ctx context.Context, start, end time.Time) ([]Trade, error) {
	return j.queryTrades(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start.UTC(), end.UTC())
}

// ListTrades implements TradeSource.
func (j *SQLite) ListTrades(ctx context.Context, q TradeQuery) ([]Trade, error) {
	if q.Range.IsZero() {
		return j.queryTrades(ctx, `
			SELECT `+tradeColumns+`
			FROM trades
			WHERE account_id = ?
			ORDER BY open_time ASC`, q.Account)
	}

	start, end := q.Range.Start.UTC(), q.Range.End.UTC()
	return j.queryTrades(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE account_id = ?
		  AND ((close_time >= ? AND close_time < ?)
		   OR (close_time IS NULL AND open_time >= ? AND open_time < ?))
		ORDER BY open_time ASC`, q.Account, start, end, start, end)
}

func (j *SQLite) queryTrades(ctx context.Context, query string, args ...any) ([]Trade, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTransactions returns an account's cash movements ordered by open time.
func (j *SQLite) ListTransactions(ctx context.Context, account string) ([]Transaction, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT tx_id, account_id, external_id, source, type, amount, open_time, close_time, complete
		FROM transactions
		WHERE account_id = ?
		ORDER BY open_time ASC`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			x     Transaction
			typ   string
			close sql.NullTime
		)
		if err := rows.Scan(&x.ID, &x.Account, &x.ExternalID, &x.Source, &typ, &x.Amount,
			&x.OpenTime, &close, &x.Complete); err != nil {
			return nil, err
		}
		x.Type = TxType(typ)
		if close.Valid {
			x.CloseTime = close.Time
		}
		out = append(out, x)
	}
	return out, rows.Err()
}
