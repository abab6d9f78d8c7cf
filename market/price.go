package market

import (
	"context"
	"fmt"
	"time"
)

// MarketPrice is one OHLC point at a base resolution. Values are never
// mutated after creation; aggregation always builds new points.
type MarketPrice struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSource loads a price series for a symbol. Implementations may return
// points in any order.
type PriceSource interface {
	Prices(ctx context.Context, symbol string, rng Range) ([]MarketPrice, error)
}

// Range is the half open interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange parses two YYYY-MM-DD dates in loc. The end date is inclusive on
// the command line, so the returned range ends at the following midnight.
func NewRange(from, to string, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation("2006-01-02", from, loc)
	if err != nil {
		return Range{}, fmt.Errorf("bad from %q: %w", from, err)
	}
	end, err := time.ParseInLocation("2006-01-02", to, loc)
	if err != nil {
		return Range{}, fmt.Errorf("bad to %q: %w", to, err)
	}
	r := Range{Start: start, End: end.AddDate(0, 0, 1)}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

func (r Range) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Validate rejects ranges that are half set or end before they start.
func (r Range) Validate() error {
	if r.IsZero() {
		return nil
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("range needs both start and end")
	}
	if !r.End.After(r.Start) {
		return fmt.Errorf("range end %s must be after start %s",
			r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return nil
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}
