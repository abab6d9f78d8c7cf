package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeledger/market"
)

func TestGetTradeNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	_, err := j.GetTrade(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListTradesRange(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	inside := sampleTrade("in", day.Add(9*time.Hour), day.Add(10*time.Hour))
	openedBefore := sampleTrade("carry", day.Add(-2*time.Hour), day.Add(time.Hour))
	closedAfter := sampleTrade("later", day.Add(20*time.Hour), day.Add(30*time.Hour))
	incomplete := sampleTrade("open", day.Add(11*time.Hour), time.Time{})
	staleIncomplete := sampleTrade("stale", day.Add(-48*time.Hour), time.Time{})
	other := sampleTrade("other", day.Add(9*time.Hour), day.Add(10*time.Hour))
	other.Account = "acct-2"

	require.NoError(t, j.SaveBatch(ctx, Batch{
		Account: "acct-1",
		Trades:  []Trade{inside, openedBefore, closedAfter, incomplete, staleIncomplete},
	}))
	require.NoError(t, j.SaveBatch(ctx, Batch{Account: "acct-2", Trades: []Trade{other}}))

	got, err := j.ListTrades(ctx, TradeQuery{
		Account: "acct-1",
		Range:   market.Range{Start: day, End: day.AddDate(0, 0, 1)},
	})
	require.NoError(t, err)

	var ids []string
	for _, tr := range got {
		ids = append(ids, tr.ExternalID)
	}
	assert.ElementsMatch(t, []string{"in", "carry", "open"}, ids)

	for _, tr := range got {
		if tr.ExternalID == "open" {
			assert.False(t, tr.Closed())
			assert.False(t, tr.Complete)
		}
	}
}

func TestListTradesClosedBetween(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	a := sampleTrade("a", day.Add(9*time.Hour), day.Add(12*time.Hour))
	b := sampleTrade("b", day.Add(8*time.Hour), day.Add(10*time.Hour))
	c := sampleTrade("c", day.Add(8*time.Hour), day.Add(25*time.Hour))
	require.NoError(t, j.SaveBatch(ctx, Batch{Account: "acct-1", Trades: []Trade{a, b, c}}))

	start, end := DayBounds(day.Add(15*time.Hour), time.UTC)
	got, err := j.ListTradesClosedBetween(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ExternalID, "ordered by close time")
	assert.Equal(t, "a", got[1].ExternalID)
}
