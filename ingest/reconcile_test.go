package ingest

import (
	"errors"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeledger/journal"
)

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func at(hh, mm int) time.Time {
	return time.Date(2024, 5, 6, hh, mm, 0, 0, time.UTC)
}

func openLeg(id string, ts time.Time, price string) WrapperRecord {
	return WrapperRecord{
		ID: id, Kind: KindTrade, Leg: LegOpen, Direction: journal.Buy,
		Time: ts, OpenTime: ts, EntryPrice: dec(price),
	}
}

func closeLeg(id string, ts time.Time, price string) WrapperRecord {
	return WrapperRecord{
		ID: id, Kind: KindTrade, Leg: LegClose, Direction: journal.Buy,
		Time: ts, CloseTime: ts, ExitPrice: dec(price), Closed: true,
	}
}

func singleLeg(id string, open, close time.Time) WrapperRecord {
	return WrapperRecord{
		ID: id, Kind: KindTrade, Leg: LegSingle, Direction: journal.Sell,
		Time: open, OpenTime: open, CloseTime: close,
		EntryPrice: dec("1.0875"), ExitPrice: dec("1.0850"), Lots: dec("0.1"),
		Profit: dec("25"), Commission: dec("-0.7"), Closed: true,
	}
}

func TestReconcileTwoLegs(t *testing.T) {
	t.Parallel()

	legs := []WrapperRecord{openLeg("1", at(9, 0), "100"), closeLeg("1", at(9, 30), "105")}

	for name, in := range map[string][]WrapperRecord{
		"in order": legs,
		"reversed": {legs[1], legs[0]},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := Reconcile(slices.Values(in), PolicyStrict)
			require.NoError(t, err)
			require.Len(t, res.Records, 1)
			assert.Empty(t, res.Issues)

			rec := res.Records[0]
			assert.Equal(t, "1", rec.ExternalID)
			assert.True(t, rec.Complete)
			assert.True(t, rec.OpenTime.Equal(at(9, 0)))
			assert.True(t, rec.CloseTime.Equal(at(9, 30)))
			assert.True(t, rec.EntryPrice.Equal(decimal.NewFromInt(100)))
			assert.True(t, rec.ExitPrice.Equal(decimal.NewFromInt(105)))
			assert.True(t, rec.NetResult.Equal(decimal.NewFromInt(5)), rec.NetResult.String())
			assert.NotEmpty(t, rec.ID)
		})
	}
}

func TestReconcileTimesFallBackToRowTimestamps(t *testing.T) {
	t.Parallel()

	open := openLeg("1", at(9, 0), "100")
	open.OpenTime = time.Time{}
	close := closeLeg("1", at(9, 30), "105")
	close.CloseTime = time.Time{}

	res, err := Reconcile(slices.Values([]WrapperRecord{close, open}), PolicyLenient)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.True(t, res.Records[0].OpenTime.Equal(at(9, 0)))
	assert.True(t, res.Records[0].CloseTime.Equal(at(9, 30)))
}

func TestReconcileLoneOpen(t *testing.T) {
	t.Parallel()

	in := []WrapperRecord{openLeg("2", at(10, 0), "100")}

	res, err := Reconcile(slices.Values(in), PolicyLenient)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.False(t, res.Records[0].Complete)
	assert.True(t, res.Records[0].CloseTime.IsZero())
	assert.Equal(t, 1, res.Incomplete())
	require.Len(t, res.Issues, 1)
	assert.Equal(t, IssueIncomplete, res.Issues[0].Kind)
	assert.True(t, errors.Is(res.Issues[0].Err, ErrIncomplete))

	res, err = Reconcile(slices.Values(in), PolicyStrict)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStrictAbort))
	require.NotNil(t, res)
	assert.Len(t, res.Issues, 1)
}

func TestReconcileDuplicateClose(t *testing.T) {
	t.Parallel()

	first := closeLeg("7", at(9, 30), "105")
	first.Row = 2
	dup := closeLeg("7", at(9, 45), "999")
	dup.Row = 3
	in := []WrapperRecord{openLeg("7", at(9, 0), "100"), first, dup}

	res, err := Reconcile(slices.Values(in), PolicyLenient)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.True(t, res.Records[0].ExitPrice.Equal(decimal.NewFromInt(105)), "earlier data is kept")
	assert.True(t, res.Records[0].CloseTime.Equal(at(9, 30)))

	require.Len(t, res.Issues, 1)
	var cerr *ConflictError
	require.True(t, errors.As(res.Issues[0].Err, &cerr))
	assert.Equal(t, "7", cerr.ID)
	assert.Equal(t, 3, cerr.Row)

	_, err = Reconcile(slices.Values(in), PolicyStrict)
	assert.True(t, errors.Is(err, ErrStrictAbort))
}

func TestReconcileDuplicateSingleRows(t *testing.T) {
	t.Parallel()

	in := []WrapperRecord{singleLeg("9", at(9, 0), at(10, 0)), singleLeg("9", at(9, 0), at(11, 0))}

	res, err := Reconcile(slices.Values(in), PolicyLenient)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.True(t, res.Records[0].CloseTime.Equal(at(10, 0)))
	assert.Equal(t, 1, res.Issues.Count(IssueConflict))
}

func TestReconcileFieldConflict(t *testing.T) {
	t.Parallel()

	open := openLeg("g", at(9, 0), "100")
	open.Symbol = "EURUSD"
	open.Lots = dec("1")
	close := closeLeg("g", at(9, 30), "105")
	close.Symbol = "GBPUSD"

	res, err := Reconcile(slices.Values([]WrapperRecord{open, close}), PolicyLenient)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.False(t, res.Records[0].Complete, "the pending leg stays pending")
	assert.Equal(t, "EURUSD", res.Records[0].Symbol)
	assert.Equal(t, 1, res.Issues.Count(IssueConflict))
	assert.Equal(t, 1, res.Issues.Count(IssueIncomplete))

	lotsClose := closeLeg("h", at(9, 30), "105")
	lotsClose.Lots = dec("2")
	lotsOpen := openLeg("h", at(9, 0), "100")
	lotsOpen.Lots = dec("1.0")
	res, err = Reconcile(slices.Values([]WrapperRecord{lotsOpen, lotsClose}), PolicyLenient)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Issues.Count(IssueConflict))

	sameLots := closeLeg("h", at(9, 30), "105")
	sameLots.Lots = dec("1.00")
	res, err = Reconcile(slices.Values([]WrapperRecord{lotsOpen, sameLots}), PolicyLenient)
	require.NoError(t, err)
	assert.Zero(t, res.Issues.Count(IssueConflict), "1.0 and 1.00 are the same size")
}

func TestReconcileValueConflicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		tweak  func(open, close *WrapperRecord)
		reason string
	}{
		{"entry price", func(o, c *WrapperRecord) { c.EntryPrice = dec("101") }, "entry price 100 vs 101"},
		{"exit price", func(o, c *WrapperRecord) { o.ExitPrice = dec("104") }, "exit price 104 vs 105"},
		{"profit", func(o, c *WrapperRecord) { o.Profit = dec("4"); c.Profit = dec("5") }, "profit 4 vs 5"},
		{"amount", func(o, c *WrapperRecord) { o.Amount = dec("10"); c.Amount = dec("12") }, "amount 10 vs 12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open := openLeg("v", at(9, 0), "100")
			close := closeLeg("v", at(9, 30), "105")
			tt.tweak(&open, &close)
			in := []WrapperRecord{open, close}

			res, err := Reconcile(slices.Values(in), PolicyLenient)
			require.NoError(t, err)
			require.Len(t, res.Records, 1)
			assert.False(t, res.Records[0].Complete, "the pending leg stays pending")
			assert.True(t, res.Records[0].EntryPrice.Equal(open.EntryPrice.Decimal))

			require.Equal(t, 1, res.Issues.Count(IssueConflict))
			var cerr *ConflictError
			for _, is := range res.Issues {
				if errors.As(is.Err, &cerr) {
					break
				}
			}
			require.NotNil(t, cerr)
			assert.Equal(t, tt.reason, cerr.Reason)

			_, err = Reconcile(slices.Values(in), PolicyStrict)
			assert.True(t, errors.Is(err, ErrStrictAbort))
		})
	}

	same := closeLeg("w", at(9, 30), "105")
	same.EntryPrice = dec("100.00")
	res, err := Reconcile(slices.Values([]WrapperRecord{openLeg("w", at(9, 0), "100"), same}), PolicyStrict)
	require.NoError(t, err)
	assert.True(t, res.Records[0].Complete)
}

func TestReconcileSumsPerLegCharges(t *testing.T) {
	t.Parallel()

	open := openLeg("c", at(9, 0), "100")
	open.Commission = dec("-2")
	open.Swap = dec("-0.5")
	close := closeLeg("c", at(9, 30), "105")
	close.Commission = dec("-3")
	close.Profit = dec("5")

	for name, in := range map[string][]WrapperRecord{
		"in order": {open, close},
		"reversed": {close, open},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := Reconcile(slices.Values(in), PolicyStrict)
			require.NoError(t, err)
			require.Len(t, res.Records, 1)

			rec := res.Records[0]
			assert.True(t, rec.Commission.Equal(decimal.NewFromInt(-5)), rec.Commission.String())
			assert.True(t, rec.Swap.Equal(decimal.RequireFromString("-0.5")), rec.Swap.String())
			assert.True(t, rec.NetResult.Equal(decimal.RequireFromString("-0.5")), rec.NetResult.String())
		})
	}
}

func TestReconcileEmitsOneRecordPerIdentifier(t *testing.T) {
	t.Parallel()

	in := []WrapperRecord{
		openLeg("A", at(9, 0), "1"),
		closeLeg("A", at(9, 5), "2"),
		closeLeg("A", at(9, 6), "3"), // duplicate close
		openLeg("B", at(9, 10), "1"), // never closed
		singleLeg("C", at(9, 0), at(9, 20)),
		closeLeg("D", at(9, 30), "4"), // close without open
		openLeg("E", at(9, 0), "1"),
		openLeg("E", at(9, 1), "1"), // two opens, no close
		singleLeg("F", at(9, 0), at(9, 40)),
		singleLeg("F", at(9, 0), at(9, 41)), // duplicate close
	}

	res, err := Reconcile(slices.Values(in), PolicyLenient)
	require.NoError(t, err)

	seen := map[string]int{}
	for _, r := range res.Records {
		seen[r.ExternalID]++
	}
	assert.Equal(t, map[string]int{"A": 1, "B": 1, "C": 1, "D": 1, "E": 1, "F": 1}, seen)
	assert.Equal(t, 2, res.Issues.Count(IssueConflict))
	assert.Equal(t, 3, res.Issues.Count(IssueIncomplete))
	assert.Equal(t, 3, res.Incomplete())
}

func TestReconcileShuffledPairs(t *testing.T) {
	t.Parallel()

	rnd := rand.New(rand.NewSource(42))
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	var in []WrapperRecord
	for i, id := range ids {
		o := at(8, i)
		in = append(in, openLeg(id, o, "10"), closeLeg(id, o.Add(time.Duration(i+1)*time.Hour), "11"))
	}
	rnd.Shuffle(len(in), func(i, j int) { in[i], in[j] = in[j], in[i] })

	res, err := Reconcile(slices.Values(in), PolicyStrict)
	require.NoError(t, err)
	require.Len(t, res.Records, len(ids))

	for _, r := range res.Records {
		i := slices.Index(ids, r.ExternalID)
		require.GreaterOrEqual(t, i, 0)
		assert.True(t, r.OpenTime.Equal(at(8, i)), r.ExternalID)
		assert.True(t, r.CloseTime.Equal(at(8, i).Add(time.Duration(i+1)*time.Hour)), r.ExternalID)
		assert.True(t, r.NetResult.Equal(decimal.NewFromInt(1)))
	}
}

func TestFinalizeNetResult(t *testing.T) {
	t.Parallel()

	// profit reported by the broker wins over price points
	rec := finalize(singleLeg("s", at(9, 0), at(10, 0)), true, []int{1})
	assert.True(t, rec.NetResult.Equal(decimal.RequireFromString("24.3")), rec.NetResult.String())
	assert.True(t, rec.Points.Equal(decimal.RequireFromString("0.0025")), rec.Points.String())

	// no profit: points times lots plus costs
	w := singleLeg("p", at(9, 0), at(10, 0))
	w.Profit = decimal.NullDecimal{}
	w.Lots = dec("2")
	w.Swap = dec("-0.3")
	rec = finalize(w, true, nil)
	assert.True(t, rec.NetResult.Equal(decimal.RequireFromString("-0.995")), rec.NetResult.String())

	tx := WrapperRecord{ID: "d", Kind: KindTransaction, TxType: "deposit", Time: at(8, 0), Amount: dec("1000"), Closed: true}
	rec = finalize(tx, true, nil)
	assert.True(t, rec.NetResult.Equal(decimal.NewFromInt(1000)))
	assert.True(t, rec.OpenTime.Equal(at(8, 0)))
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyLenient, p)

	p, err = ParsePolicy(" STRICT ")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	_, err = ParsePolicy("yolo")
	assert.Error(t, err)
}
