package ingest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/journal"
)

// Row is one tokenized line of a broker statement. Index is the zero based
// position in the source, header rows included.
type Row struct {
	Index  int
	Fields []string
}

func (r Row) blank() bool {
	for _, f := range r.Fields {
		if f != "" {
			return false
		}
	}
	return true
}

type Kind string

const (
	KindTrade       Kind = "trade"
	KindTransaction Kind = "transaction"
)

// Leg says which half of a record a row carries. Single legs are already
// closed and carry both halves.
type Leg string

const (
	LegOpen   Leg = "open"
	LegClose  Leg = "close"
	LegSingle Leg = "single"
)

// Account is the context a statement is imported into.
type Account struct {
	ID       string
	Location *time.Location
}

// WrapperRecord is one normalized leg. Zero times and invalid NullDecimals
// mean the row did not define the field.
type WrapperRecord struct {
	Row       int
	ID        string
	Kind      Kind
	Leg       Leg
	Symbol    string
	Direction journal.Direction
	TxType    journal.TxType
	Time      time.Time
	OpenTime  time.Time
	CloseTime time.Time

	EntryPrice decimal.NullDecimal
	ExitPrice  decimal.NullDecimal
	Lots       decimal.NullDecimal
	Profit     decimal.NullDecimal
	Commission decimal.NullDecimal
	Swap       decimal.NullDecimal
	Amount     decimal.NullDecimal

	Closed bool
}

// Record is the canonical result of reconciling every leg of one
// identifier.
type Record struct {
	ID         string
	ExternalID string
	Kind       Kind
	Symbol     string
	Direction  journal.Direction
	TxType     journal.TxType
	OpenTime   time.Time
	CloseTime  time.Time
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	Lots       decimal.Decimal
	Profit     decimal.Decimal
	Commission decimal.Decimal
	Swap       decimal.Decimal
	Amount     decimal.Decimal
	Points     decimal.Decimal
	NetResult  decimal.Decimal
	Complete   bool
	Rows       []int
}

// Trade converts a trade record to its persisted form.
func (r Record) Trade(account, source string) journal.Trade {
	return journal.Trade{
		ID:         r.ID,
		Account:    account,
		ExternalID: r.ExternalID,
		Source:     source,
		Symbol:     r.Symbol,
		Direction:  r.Direction,
		Lots:       r.Lots,
		EntryPrice: r.EntryPrice,
		ExitPrice:  r.ExitPrice,
		OpenTime:   r.OpenTime,
		CloseTime:  r.CloseTime,
		Points:     r.Points,
		Profit:     r.Profit,
		Commission: r.Commission,
		Swap:       r.Swap,
		NetResult:  r.NetResult,
		Complete:   r.Complete,
	}
}

func (r Record) Transaction(account, source string) journal.Transaction {
	return journal.Transaction{
		ID:         r.ID,
		Account:    account,
		ExternalID: r.ExternalID,
		Source:     source,
		Type:       r.TxType,
		Amount:     r.Amount,
		OpenTime:   r.OpenTime,
		CloseTime:  r.CloseTime,
		Complete:   r.Complete,
	}
}
