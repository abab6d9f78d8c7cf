package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeledger/journal"
)

func vendor(t *testing.T, f Format) *Vendor {
	t.Helper()
	reg, err := NewRegistry()
	require.NoError(t, err)
	v, err := reg.Lookup(f)
	require.NoError(t, err)
	return v
}

func cmcRow(idx int, ts, typ, id, symbol, units, price, pl string) Row {
	return Row{Index: idx, Fields: []string{ts, typ, id, symbol, units, price, pl, "", "", ""}}
}

func TestNormalizeCMCOpenAndClose(t *testing.T) {
	t.Parallel()

	v := vendor(t, "cmc")
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	var n Normalizer
	open, err := n.Normalize(cmcRow(1, "06/05/2024 09:00:00", "Buy", "1", "EURUSD", "1,000", "100", ""), v, Account{ID: "a"})
	require.NoError(t, err)

	assert.Equal(t, "1", open.ID)
	assert.Equal(t, KindTrade, open.Kind)
	assert.Equal(t, LegOpen, open.Leg)
	assert.Equal(t, journal.Buy, open.Direction)
	assert.False(t, open.Closed)
	assert.True(t, open.Time.Equal(time.Date(2024, 5, 6, 9, 0, 0, 0, london)))
	assert.True(t, open.OpenTime.Equal(open.Time))
	assert.True(t, open.CloseTime.IsZero())
	assert.True(t, open.Lots.Decimal.Equal(decimal.NewFromInt(1000)))
	assert.True(t, open.EntryPrice.Decimal.Equal(decimal.NewFromInt(100)))
	assert.False(t, open.ExitPrice.Valid)

	close, err := n.Normalize(cmcRow(2, "06/05/2024 09:30:00", "close buy", "1", "EURUSD", "1,000", "105", "5,000.50"), v, Account{ID: "a"})
	require.NoError(t, err)
	assert.Equal(t, LegClose, close.Leg)
	assert.True(t, close.Closed)
	assert.True(t, close.CloseTime.Equal(time.Date(2024, 5, 6, 9, 30, 0, 0, london)))
	assert.True(t, close.ExitPrice.Decimal.Equal(decimal.NewFromInt(105)))
	assert.True(t, close.Profit.Decimal.Equal(decimal.RequireFromString("5000.50")))
}

func TestNormalizeCMCTransactions(t *testing.T) {
	t.Parallel()

	v := vendor(t, "cmc")
	var n Normalizer

	row := Row{Index: 3, Fields: []string{"01/05/2024 08:00:00", "Deposit Pending", "D1", "", "", "", "", "", "", "2,500.00"}}
	w, err := n.Normalize(row, v, Account{})
	require.NoError(t, err)
	assert.Equal(t, KindTransaction, w.Kind)
	assert.Equal(t, journal.TxType("deposit"), w.TxType)
	assert.Equal(t, LegOpen, w.Leg)
	assert.True(t, w.Amount.Decimal.Equal(decimal.NewFromInt(2500)))
}

func TestNormalizeXTBLocaleNumbers(t *testing.T) {
	t.Parallel()

	v := vendor(t, "xtb")
	var n Normalizer

	row := Row{Index: 4, Fields: []string{"77", "close sell", "06.05.2024 15:00:00", "DE40", "0,5", "18 234,5", "-1 234,56", "-2,10", "0", ""}}
	w, err := n.Normalize(row, v, Account{})
	require.NoError(t, err)

	assert.Equal(t, journal.Sell, w.Direction)
	assert.True(t, w.ExitPrice.Decimal.Equal(decimal.RequireFromString("18234.5")))
	assert.True(t, w.Profit.Decimal.Equal(decimal.RequireFromString("-1234.56")))
	assert.True(t, w.Commission.Decimal.Equal(decimal.RequireFromString("-2.1")))
	assert.True(t, w.Lots.Decimal.Equal(decimal.RequireFromString("0.5")))
}

func TestNormalizeMetaTraderSingleRow(t *testing.T) {
	t.Parallel()

	v := vendor(t, "metatrader")
	var n Normalizer

	row := Row{Index: 1, Fields: []string{
		"1001", "2024.05.06 09:00:00", "sell", "0.10", "EURUSD", "1.08750", "0", "0",
		"2024.05.06 10:00:00", "1.08500", "-0.70", "0", "0", "25.00",
	}}
	w, err := n.Normalize(row, v, Account{ID: "mt", Location: time.UTC})
	require.NoError(t, err)

	assert.Equal(t, LegSingle, w.Leg)
	assert.True(t, w.Closed)
	assert.True(t, w.OpenTime.Equal(time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)))
	assert.True(t, w.CloseTime.Equal(time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)))
	assert.True(t, w.EntryPrice.Decimal.Equal(decimal.RequireFromString("1.0875")))
	assert.True(t, w.ExitPrice.Decimal.Equal(decimal.RequireFromString("1.085")))

	balance := Row{Index: 2, Fields: []string{
		"2001", "2024.05.01 08:00:00", "balance", "", "", "", "", "", "", "", "", "", "", "1000.00",
	}}
	b, err := n.Normalize(balance, v, Account{})
	require.NoError(t, err)
	assert.Equal(t, KindTransaction, b.Kind)
	assert.True(t, b.Closed)
	assert.True(t, b.CloseTime.Equal(b.Time), "missing close time falls back to the row time")
	assert.True(t, b.Amount.Decimal.Equal(decimal.NewFromInt(1000)))
}

func TestNormalizeAccountLocation(t *testing.T) {
	t.Parallel()

	v := vendor(t, "metatrader")
	tokyo := time.FixedZone("JST", 9*60*60)

	row := Row{Index: 1, Fields: []string{"1", "2024.05.06 09:00:00", "buy", "1", "X", "1"}}
	w, err := Normalizer{}.Normalize(row, v, Account{Location: tokyo})
	require.NoError(t, err)
	assert.True(t, w.Time.Equal(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)))
}

func TestNormalizeErrors(t *testing.T) {
	t.Parallel()

	v := vendor(t, "cmc")

	tests := []struct {
		name    string
		row     Row
		column  Field
		missing bool
	}{
		{"missing id", cmcRow(5, "06/05/2024 09:00:00", "buy", "", "X", "1", "1", ""), FieldID, true},
		{"missing time", cmcRow(5, "", "buy", "1", "X", "1", "1", ""), FieldTime, true},
		{"bad time", cmcRow(5, "2024-05-06", "buy", "1", "X", "1", "1", ""), FieldTime, false},
		{"missing type", cmcRow(5, "06/05/2024 09:00:00", "", "1", "X", "1", "1", ""), FieldType, true},
		{"unknown type", cmcRow(5, "06/05/2024 09:00:00", "hedge", "1", "X", "1", "1", ""), FieldType, false},
		{"bad lots", cmcRow(5, "06/05/2024 09:00:00", "buy", "1", "X", "1x0", "1", ""), FieldLots, false},
		{"bad price", cmcRow(5, "06/05/2024 09:00:00", "buy", "1", "X", "1", "1.2.3", ""), FieldPrice, false},
		{"no amount", cmcRow(5, "06/05/2024 09:00:00", "buy", "1", "X", "1", "", ""), FieldAmount, true},
		{"short row", Row{Index: 5, Fields: []string{"06/05/2024 09:00:00", "buy"}}, FieldID, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalizer{}.Normalize(tt.row, v, Account{})
			require.Error(t, err)

			var perr *ParsingError
			require.True(t, errors.As(err, &perr), err)
			assert.Equal(t, 5, perr.Row)
			assert.Equal(t, string(tt.column), perr.Column)
			assert.Equal(t, tt.missing, errors.Is(err, ErrMissingField))
			assert.Contains(t, err.Error(), "row 5")
		})
	}
}

func TestNormalizeAllKeepsRowOrder(t *testing.T) {
	t.Parallel()

	v := vendor(t, "cmc")

	rows := []Row{{Index: 0, Fields: []string{"Date", "Type", "Trade ID"}}}
	for i := 1; i <= 200; i++ {
		rows = append(rows, cmcRow(i, "06/05/2024 09:00:00", "buy", fmt.Sprint(i), "X", "1", "1", ""))
	}
	rows = append(rows,
		Row{Index: 201, Fields: []string{"", "", ""}},
		cmcRow(202, "06/05/2024 09:00:00", "buy", "bad", "X", "oops", "1", ""),
	)

	recs, issues, err := Normalizer{Workers: 4}.NormalizeAll(context.Background(), rows, v, Account{})
	require.NoError(t, err)
	require.Len(t, recs, 200)
	for i, r := range recs {
		assert.Equal(t, i+1, r.Row)
		assert.Equal(t, fmt.Sprint(i+1), r.ID)
	}

	require.Len(t, issues, 1)
	assert.Equal(t, IssueParsing, issues[0].Kind)
	assert.Equal(t, 202, issues[0].Row)
}

func TestNormalizeAllCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := []Row{cmcRow(1, "06/05/2024 09:00:00", "buy", "1", "X", "1", "1", "")}
	_, _, err := Normalizer{}.NormalizeAll(ctx, rows, vendor(t, "cmc"), Account{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, dec, thousands, want string
	}{
		{"1234.5", ".", "", "1234.5"},
		{"1,234.5", ".", ",", "1234.5"},
		{"1 234,5", ",", " ", "1234.5"},
		{"1\u00a0234,5", ",", " ", "1234.5"},
		{"(12.50)", ".", ",", "-12.5"},
		{"-0,01", ",", ".", "-0.01"},
	}
	for _, tt := range tests {
		got, err := parseNumber(tt.in, tt.dec, tt.thousands)
		require.NoError(t, err, tt.in)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "%s -> %s", tt.in, got)
	}

	_, err := parseNumber("abc", ".", "")
	assert.Error(t, err)
}
