package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rustyeddy/tradeledger/journal"
)

// JournalStore is a journal.Sink and journal.TradeSource backed by
// PostgreSQL. Decimals travel as text so no precision is lost.
type JournalStore struct {
	pool *Pool
}

func NewJournalStore(pool *Pool) *JournalStore {
	return &JournalStore{pool: pool}
}

var (
	_ journal.Sink        = (*JournalStore)(nil)
	_ journal.TradeSource = (*JournalStore)(nil)
)

const upsertTrade = `
	INSERT INTO trades (
		trade_id, account_id, external_id, source, symbol, direction,
		lots, entry_price, exit_price, open_time, close_time,
		points, profit, commission, swap, net_result, complete
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7::text::numeric, $8::text::numeric, $9::text::numeric, $10, $11,
		$12::text::numeric, $13::text::numeric, $14::text::numeric, $15::text::numeric, $16::text::numeric, $17
	)
	ON CONFLICT (account_id, external_id) DO UPDATE SET
		source = EXCLUDED.source,
		symbol = EXCLUDED.symbol,
		direction = EXCLUDED.direction,
		lots = EXCLUDED.lots,
		entry_price = EXCLUDED.entry_price,
		exit_price = EXCLUDED.exit_price,
		open_time = EXCLUDED.open_time,
		close_time = EXCLUDED.close_time,
		points = EXCLUDED.points,
		profit = EXCLUDED.profit,
		commission = EXCLUDED.commission,
		swap = EXCLUDED.swap,
		net_result = EXCLUDED.net_result,
		complete = EXCLUDED.complete`

const upsertTransaction = `
	INSERT INTO transactions (
		tx_id, account_id, external_id, source, type, amount, open_time, close_time, complete
	) VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9)
	ON CONFLICT (account_id, external_id) DO UPDATE SET
		source = EXCLUDED.source,
		type = EXCLUDED.type,
		amount = EXCLUDED.amount,
		open_time = EXCLUDED.open_time,
		close_time = EXCLUDED.close_time,
		complete = EXCLUDED.complete`

// SaveBatch queues every upsert of b and sends them in one transaction.
func (s *JournalStore) SaveBatch(ctx context.Context, b journal.Batch) error {
	if b.Len() == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, t := range b.Trades {
		batch.Queue(upsertTrade,
			t.ID, t.Account, t.ExternalID, t.Source, t.Symbol, string(t.Direction),
			t.Lots.String(), t.EntryPrice.String(), t.ExitPrice.String(),
			t.OpenTime.UTC(), nullTime(t.CloseTime),
			t.Points.String(), t.Profit.String(), t.Commission.String(), t.Swap.String(),
			t.NetResult.String(), t.Complete,
		)
	}
	for _, x := range b.Transactions {
		batch.Queue(upsertTransaction,
			x.ID, x.Account, x.ExternalID, x.Source, string(x.Type), x.Amount.String(),
			x.OpenTime.UTC(), nullTime(x.CloseTime), x.Complete,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range batch.Len() {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert record %d of batch %s: %w", i, b.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const tradeColumns = `trade_id, account_id, external_id, source, symbol, direction,
	lots::text, entry_price::text, exit_price::text, open_time, close_time,
	points::text, profit::text, commission::text, swap::text, net_result::text, complete`

func scanTrade(row pgx.Row) (journal.Trade, error) {
	var (
		t     journal.Trade
		dir   string
		close *time.Time
	)
	err := row.Scan(
		&t.ID, &t.Account, &t.ExternalID, &t.Source, &t.Symbol, &dir,
		&t.Lots, &t.EntryPrice, &t.ExitPrice, &t.OpenTime, &close,
		&t.Points, &t.Profit, &t.Commission, &t.Swap, &t.NetResult, &t.Complete,
	)
	if err != nil {
		return journal.Trade{}, err
	}
	t.Direction = journal.Direction(dir)
	t.OpenTime = t.OpenTime.UTC()
	if close != nil {
		t.CloseTime = close.UTC()
	}
	return t, nil
}

// GetTrade returns one trade by id.
func (s *JournalStore) GetTrade(ctx context.Context, tradeID string) (journal.Trade, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades WHERE trade_id = $1`, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return journal.Trade{}, fmt.Errorf("trade %q: %w", tradeID, journal.ErrNotFound)
		}
		return journal.Trade{}, fmt.Errorf("get trade: %w", err)
	}
	return t, nil
}

// ListTrades implements journal.TradeSource with the same selection rules
// as the SQLite store.
func (s *JournalStore) ListTrades(ctx context.Context, q journal.TradeQuery) ([]journal.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE account_id = $1`
	args := []any{q.Account}
	if !q.Range.IsZero() {
		query += `
		  AND ((close_time >= $2 AND close_time < $3)
		   OR (close_time IS NULL AND open_time >= $2 AND open_time < $3))`
		args = append(args, q.Range.Start.UTC(), q.Range.End.UTC())
	}
	query += ` ORDER BY open_time ASC, trade_id ASC`
	return s.queryTrades(ctx, query, args...)
}

// ListTradesClosedBetween returns trades of every account whose close time
// is within [start, end).
func (s *JournalStore) ListTradesClosedBetween(ctx context.Context, start, end time.Time) ([]journal.Trade, error) {
	return s.queryTrades(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE close_time >= $1 AND close_time < $2
		ORDER BY close_time ASC`, start.UTC(), end.UTC())
}

func (s *JournalStore) queryTrades(ctx context.Context, query string, args ...any) ([]journal.Trade, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []journal.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return out, nil
}

// ListTransactions returns an account's cash movements ordered by open time.
func (s *JournalStore) ListTransactions(ctx context.Context, account string) ([]journal.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tx_id, account_id, external_id, source, type, amount::text, open_time, close_time, complete
		FROM transactions
		WHERE account_id = $1
		ORDER BY open_time ASC, tx_id ASC`, account)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []journal.Transaction
	for rows.Next() {
		var (
			x     journal.Transaction
			typ   string
			close *time.Time
		)
		if err := rows.Scan(&x.ID, &x.Account, &x.ExternalID, &x.Source, &typ, &x.Amount,
			&x.OpenTime, &close, &x.Complete); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		x.Type = journal.TxType(typ)
		x.OpenTime = x.OpenTime.UTC()
		if close != nil {
			x.CloseTime = close.UTC()
		}
		out = append(out, x)
	}
	return out, rows.Err()
}
