package market

import (
	"fmt"
	"sort"
	"time"
)

// AggregatedMarketPrices is a candle series at Interval. Candle times are
// window starts; windows are anchored at Range.Start.
type AggregatedMarketPrices struct {
	Symbol   string
	Interval Interval
	Range    Range
	Candles  []MarketPrice
}

// AggregationInputError is returned when the input cannot produce a series
// for the requested range.
type AggregationInputError struct {
	Reason string
	Time   time.Time
}

func (e *AggregationInputError) Error() string {
	if e.Time.IsZero() {
		return "aggregate prices: " + e.Reason
	}
	return fmt.Sprintf("aggregate prices: %s at %s", e.Reason, e.Time.Format(time.RFC3339))
}

// Aggregate folds base resolution prices into candles of the given interval.
//
// The input is copied and sorted, so callers may pass points in any order.
// Windows without points are skipped; the trailing window is emitted even
// when it is cut short by rng.End. With a zero range the windows are anchored
// at the first point truncated to the interval. Day windows follow calendar
// days in the location of the anchor.
func Aggregate(prices []MarketPrice, interval Interval, rng Range) (*AggregatedMarketPrices, error) {
	d := interval.Duration()
	if d <= 0 {
		return nil, &AggregationInputError{Reason: fmt.Sprintf("unknown interval %q", interval)}
	}
	if err := rng.Validate(); err != nil {
		return nil, &AggregationInputError{Reason: err.Error()}
	}

	sorted := make([]MarketPrice, len(prices))
	copy(sorted, prices)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Time.Equal(sorted[i-1].Time) {
			return nil, &AggregationInputError{Reason: "duplicate timestamp", Time: sorted[i].Time}
		}
	}

	if rng.IsZero() {
		if len(sorted) == 0 {
			return &AggregatedMarketPrices{Interval: interval}, nil
		}
		start := sorted[0].Time.Truncate(d)
		last := sorted[len(sorted)-1].Time
		end := interval.windowStart(start, interval.windowIndex(start, last)+1)
		rng = Range{Start: start, End: end}
	}

	out := &AggregatedMarketPrices{
		Interval: interval,
		Range:    rng,
	}

	var (
		cur    MarketPrice
		curIdx int64 = -1
	)
	for _, p := range sorted {
		if !rng.Contains(p.Time) {
			continue
		}
		idx := interval.windowIndex(rng.Start, p.Time)
		if idx != curIdx {
			if curIdx >= 0 {
				out.Candles = append(out.Candles, cur)
			}
			curIdx = idx
			cur = MarketPrice{
				Time:   interval.windowStart(rng.Start, idx),
				Open:   p.Open,
				High:   p.High,
				Low:    p.Low,
				Close:  p.Close,
				Volume: p.Volume,
			}
			continue
		}
		if p.High > cur.High {
			cur.High = p.High
		}
		if p.Low < cur.Low {
			cur.Low = p.Low
		}
		cur.Close = p.Close
		cur.Volume += p.Volume
	}
	if curIdx >= 0 {
		out.Candles = append(out.Candles, cur)
	}

	if len(out.Candles) == 0 {
		return nil, &AggregationInputError{Reason: "no prices inside " + rng.String()}
	}
	return out, nil
}

// Window returns the time span covered by candle i, clipped to the range.
func (a *AggregatedMarketPrices) Window(i int) Range {
	start := a.Candles[i].Time
	end := a.Interval.windowStart(start, 1)
	if !a.Range.End.IsZero() && end.After(a.Range.End) {
		end = a.Range.End
	}
	return Range{Start: start, End: end}
}

func (a *AggregatedMarketPrices) Len() int {
	return len(a.Candles)
}
