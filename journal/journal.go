// Package journal holds the canonical trade and transaction records and the
// stores they are persisted in.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/market"
)

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.New("not found")

type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// Sign is +1 for buys and -1 for sells.
func (d Direction) Sign() int64 {
	if d == Sell {
		return -1
	}
	return 1
}

// TxType is the kind of a cash movement: deposit, withdrawal, dividend, ...
type TxType string

// Trade is the canonical, merged record of one position.
type Trade struct {
	ID         string
	Account    string
	ExternalID string
	Source     string
	Symbol     string
	Direction  Direction
	Lots       decimal.Decimal
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	OpenTime   time.Time
	CloseTime  time.Time // zero until the closing leg is known
	Points     decimal.Decimal
	Profit     decimal.Decimal
	Commission decimal.Decimal
	Swap       decimal.Decimal
	NetResult  decimal.Decimal
	Complete   bool
}

// Closed reports whether the trade has a close time.
func (t Trade) Closed() bool {
	return !t.CloseTime.IsZero()
}

// Transaction is a canonical cash movement on an account.
type Transaction struct {
	ID         string
	Account    string
	ExternalID string
	Source     string
	Type       TxType
	Amount     decimal.Decimal
	OpenTime   time.Time
	CloseTime  time.Time
	Complete   bool
}

// Batch is everything one import produced for one account. Sinks store a
// batch atomically.
type Batch struct {
	ID           string
	Account      string
	Source       string
	Trades       []Trade
	Transactions []Transaction
}

func (b Batch) Len() int {
	return len(b.Trades) + len(b.Transactions)
}

// Sink persists a batch inside a single transaction. Records are keyed by
// (account, external id) so re-importing a statement updates in place.
type Sink interface {
	SaveBatch(ctx context.Context, b Batch) error
}

// TradeQuery selects an account's trades. Trades closed inside Range are
// returned, together with incomplete trades opened inside it. A zero Range
// selects everything.
type TradeQuery struct {
	Account string
	Range   market.Range
}

// TradeSource loads persisted trades.
type TradeSource interface {
	ListTrades(ctx context.Context, q TradeQuery) ([]Trade, error)
}
