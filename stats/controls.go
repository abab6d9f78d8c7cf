package stats

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthEntry points at the buckets of one calendar month. First and Last
// are inclusive indexes into Report.Records. A week bucket belongs to the
// month it starts in.
type MonthEntry struct {
	Month     time.Month
	First     int
	Last      int
	Start     time.Time
	End       time.Time
	HasTrades bool
	Trades    int
	NetResult decimal.Decimal
}

type YearEntry struct {
	Year      int
	Months    []MonthEntry
	Trades    int
	NetResult decimal.Decimal
}

// Controls is the year/month index over a report. It is rebuilt from
// scratch whenever the report changes.
type Controls struct {
	Years []YearEntry
	years map[int]int
}

// BuildControls indexes every bucket of r. Years and months are ascending
// because the buckets are.
func BuildControls(r *Report) *Controls {
	c := &Controls{years: make(map[int]int)}
	if r == nil {
		return c
	}

	for i, rec := range r.Records {
		y, m := rec.Start.Year(), rec.Start.Month()

		yi, ok := c.years[y]
		if !ok {
			yi = len(c.Years)
			c.years[y] = yi
			c.Years = append(c.Years, YearEntry{Year: y})
		}
		ye := &c.Years[yi]

		if n := len(ye.Months); n == 0 || ye.Months[n-1].Month != m {
			ye.Months = append(ye.Months, MonthEntry{Month: m, First: i, Start: rec.Start})
		}
		me := &ye.Months[len(ye.Months)-1]
		me.Last = i
		me.End = rec.End
		me.Trades += rec.Trades
		me.NetResult = me.NetResult.Add(rec.NetResult)
		me.HasTrades = me.HasTrades || !rec.Empty()

		ye.Trades += rec.Trades
		ye.NetResult = ye.NetResult.Add(rec.NetResult)
	}
	return c
}

// Year looks up one year.
func (c *Controls) Year(y int) (YearEntry, bool) {
	i, ok := c.years[y]
	if !ok {
		return YearEntry{}, false
	}
	return c.Years[i], true
}

// Month looks up one month of one year.
func (c *Controls) Month(y int, m time.Month) (MonthEntry, bool) {
	ye, ok := c.Year(y)
	if !ok {
		return MonthEntry{}, false
	}
	for _, me := range ye.Months {
		if me.Month == m {
			return me, true
		}
	}
	return MonthEntry{}, false
}

// Month returns the buckets a month entry points at.
func (r *Report) Month(me MonthEntry) []TradeRecord {
	if me.First < 0 || me.Last >= len(r.Records) || me.First > me.Last {
		return nil
	}
	return r.Records[me.First : me.Last+1]
}
