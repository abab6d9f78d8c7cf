package clickhouse

import (
	"context"
	"fmt"

	"github.com/rustyeddy/tradeledger/market"
)

// PriceStore is a market.PriceSource over the market_prices table. Rows
// with the same (symbol, time) replace each other.
type PriceStore struct {
	conn *Conn
}

func NewPriceStore(conn *Conn) *PriceStore {
	return &PriceStore{conn: conn}
}

var _ market.PriceSource = (*PriceStore)(nil)

// SavePrices appends a series in one batch.
func (s *PriceStore) SavePrices(ctx context.Context, symbol string, prices []market.MarketPrice) error {
	if len(prices) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO market_prices (symbol, time, open, high, low, close, volume)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range prices {
		if err := batch.Append(symbol, p.Time.UTC(), p.Open, p.High, p.Low, p.Close, p.Volume); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Prices implements market.PriceSource. FINAL collapses replaced rows.
func (s *PriceStore) Prices(ctx context.Context, symbol string, rng market.Range) ([]market.MarketPrice, error) {
	query := `
		SELECT time, open, high, low, close, volume
		FROM market_prices FINAL
		WHERE symbol = ?`
	args := []any{symbol}
	if !rng.IsZero() {
		query += ` AND time >= ? AND time < ?`
		args = append(args, rng.Start.UTC(), rng.End.UTC())
	}
	query += ` ORDER BY time ASC`

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var out []market.MarketPrice
	for rows.Next() {
		var p market.MarketPrice
		if err := rows.Scan(&p.Time, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		p.Time = p.Time.UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prices: %w", err)
	}
	return out, nil
}
