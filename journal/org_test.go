package journal

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTradeOrg(t *testing.T) {
	t.Parallel()

	open := time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)
	close := time.Date(2024, 3, 15, 14, 20, 30, 0, time.UTC)

	trade := sampleTrade("9001", open, close)
	trade.ID = "01HS2K3M4N5P6Q7R8S9T0V1W2X"

	result := FormatTradeOrg(trade)

	assert.Contains(t, result, "** Trade: EURUSD buy (01HS2K3M)")
	assert.NotContains(t, result, ":incomplete:")

	assert.Contains(t, result, ":PROPERTIES:")
	assert.Contains(t, result, ":ID: 01HS2K3M4N5P6Q7R8S9T0V1W2X")
	assert.Contains(t, result, ":EXTERNAL_ID: 9001")
	assert.Contains(t, result, ":SYMBOL: EURUSD")
	assert.Contains(t, result, ":LOTS: 0.5")
	assert.Contains(t, result, ":ENTRY_PRICE: 1.085")
	assert.Contains(t, result, ":OPEN_TIME: 2024-03-15T10:30:45Z")
	assert.Contains(t, result, ":CLOSE_TIME: 2024-03-15T14:20:30Z")
	assert.Contains(t, result, ":NET_RESULT: 121.50")
	assert.Contains(t, result, ":END:")

	assert.Contains(t, result, "*** Thesis")
	assert.Contains(t, result, "*** Execution")
	assert.Contains(t, result, "*** Review")
}

func TestFormatTradeOrgIncomplete(t *testing.T) {
	t.Parallel()

	trade := sampleTrade("1", time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), time.Time{})
	result := FormatTradeOrg(trade)

	assert.Contains(t, result, "** Trade: EURUSD buy (T-1) :incomplete:")
	assert.Contains(t, result, ":CLOSE_TIME: \n")
}

func TestFormatTradesOrg(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	out := FormatTradesOrg([]Trade{sampleTrade("1", at, at), sampleTrade("2", at, at)})

	assert.Equal(t, 2, strings.Count(out, "** Trade:"))
	assert.Contains(t, out, "*** Review\n- \n\n\n** Trade:")
	assert.Empty(t, FormatTradesOrg(nil))
}

func TestDayBounds(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}

	start, end := DayBounds(time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC), ny)
	assert.Equal(t, 10, start.Day())
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, 23*time.Hour, end.Sub(start), "DST starts on 2024-03-10")
}
