// Package stats rolls canonical trades into calendar buckets and indexes the
// buckets by year and month.
package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/journal"
	"github.com/rustyeddy/tradeledger/market"
)

// Granularity is the calendar period of one bucket.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week" // ISO weeks, starting Monday
	Month Granularity = "month"
)

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return Day, nil
	case Day, Week, Month:
		return g, nil
	default:
		return "", fmt.Errorf("unknown granularity %q (day|week|month)", s)
	}
}

// Floor returns the start of the bucket holding t, in t's location.
func (g Granularity) Floor(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	switch g {
	case Week:
		back := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -back)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return day
	}
}

// Next returns the start of the bucket after the one starting at start.
func (g Granularity) Next(start time.Time) time.Time {
	switch g {
	case Week:
		return start.AddDate(0, 0, 7)
	case Month:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// Filter selects which trades are counted.
type Filter string

const (
	All    Filter = "all"
	Wins   Filter = "wins"
	Losses Filter = "losses"
)

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return All, nil
	case All, Wins, Losses:
		return f, nil
	default:
		return "", fmt.Errorf("unknown filter %q (all|wins|losses)", s)
	}
}

func (f Filter) keep(net decimal.Decimal) bool {
	switch f {
	case Wins:
		return net.IsPositive()
	case Losses:
		return net.IsNegative()
	default:
		return true
	}
}

// Totals are the counters shared by a bucket and a whole report.
type Totals struct {
	Trades      int
	Wins        int
	Losses      int
	Breakeven   int
	NetResult   decimal.Decimal
	LargestWin  decimal.Decimal
	LargestLoss decimal.Decimal
}

// WinRate is wins / (wins + losses), or zero when there are neither.
func (t Totals) WinRate() float64 {
	n := t.Wins + t.Losses
	if n == 0 {
		return 0
	}
	return float64(t.Wins) / float64(n)
}

func (t *Totals) addTrade(net decimal.Decimal) {
	t.Trades++
	t.NetResult = t.NetResult.Add(net)
	switch {
	case net.IsPositive():
		t.Wins++
		if net.GreaterThan(t.LargestWin) {
			t.LargestWin = net
		}
	case net.IsNegative():
		t.Losses++
		if net.LessThan(t.LargestLoss) {
			t.LargestLoss = net
		}
	default:
		t.Breakeven++
	}
}

func (t *Totals) merge(o Totals) {
	t.Trades += o.Trades
	t.Wins += o.Wins
	t.Losses += o.Losses
	t.Breakeven += o.Breakeven
	t.NetResult = t.NetResult.Add(o.NetResult)
	if o.LargestWin.GreaterThan(t.LargestWin) {
		t.LargestWin = o.LargestWin
	}
	if o.LargestLoss.LessThan(t.LargestLoss) {
		t.LargestLoss = o.LargestLoss
	}
}

// TradeRecord is one bucket [Start, End).
type TradeRecord struct {
	Start time.Time
	End   time.Time
	Totals
}

func (r TradeRecord) Empty() bool {
	return r.Trades == 0
}

// Report is an ordered run of buckets covering Range.
type Report struct {
	Granularity Granularity
	Filter      Filter
	Range       market.Range
	Records     []TradeRecord
	Totals      Totals

	// Incomplete counts trades left out because they have no close time.
	Incomplete int
}

// BuildReport buckets trades by close time. Every bucket touching rng is
// emitted, empty ones included, in ascending order; bucket edges follow the
// calendar in rng.Start's location. With a zero range the range is derived
// from the close times of the trades, in UTC.
func BuildReport(trades []journal.Trade, g Granularity, f Filter, rng market.Range) (*Report, error) {
	if g == "" {
		g = Day
	}
	if f == "" {
		f = All
	}
	if _, err := ParseGranularity(string(g)); err != nil {
		return nil, err
	}
	if _, err := ParseFilter(string(f)); err != nil {
		return nil, err
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	rep := &Report{Granularity: g, Filter: f, Range: rng}

	closed := make([]journal.Trade, 0, len(trades))
	for _, t := range trades {
		if !t.Complete || !t.Closed() {
			rep.Incomplete++
			continue
		}
		closed = append(closed, t)
	}

	if rng.IsZero() {
		if len(closed) == 0 {
			return rep, nil
		}
		rng = spanOf(closed, g)
		rep.Range = rng
	}

	loc := rng.Start.Location()
	index := make(map[int64]int)
	for start := g.Floor(rng.Start); start.Before(rng.End); start = g.Next(start) {
		index[start.Unix()] = len(rep.Records)
		rep.Records = append(rep.Records, TradeRecord{Start: start, End: g.Next(start)})
	}

	for _, t := range closed {
		if !rng.Contains(t.CloseTime) || !f.keep(t.NetResult) {
			continue
		}
		i, ok := index[g.Floor(t.CloseTime.In(loc)).Unix()]
		if !ok {
			continue
		}
		rep.Records[i].addTrade(t.NetResult)
	}

	for _, r := range rep.Records {
		rep.Totals.merge(r.Totals)
	}
	return rep, nil
}

// spanOf covers every close time with whole buckets.
func spanOf(trades []journal.Trade, g Granularity) market.Range {
	first, last := trades[0].CloseTime.UTC(), trades[0].CloseTime.UTC()
	for _, t := range trades[1:] {
		c := t.CloseTime.UTC()
		if c.Before(first) {
			first = c
		}
		if c.After(last) {
			last = c
		}
	}
	return market.Range{Start: g.Floor(first), End: g.Next(g.Floor(last))}
}
