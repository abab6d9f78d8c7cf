package market

import (
	"fmt"
	"io"
	"time"
)

type Gap struct {
	Start time.Time // first missing window
	Len   int       // number of missing windows
	Kind  string    // weekend, suspicious or minor
}

type GapStats struct {
	TotalWindows   int
	PresentWindows int
	MissingWindows int
	GapCount       int
	WeekendGaps    int
	SuspiciousGaps int
	LongestGap     int
	LongestGapKind string
}

// Gaps lists the runs of empty windows between the start and end of the
// aggregated range. Aggregate omits empty windows; charting code uses this to
// tell a closed market from a hole in the data.
func (a *AggregatedMarketPrices) Gaps() []Gap {
	iv := a.Interval
	if !iv.Valid() || a.Range.IsZero() {
		return nil
	}

	var gaps []Gap
	next := a.Range.Start
	flush := func(until time.Time) {
		n := iv.windowCount(next, until)
		if n == 0 {
			return
		}
		span := iv.windowStart(next, int64(n)).Sub(next)
		gaps = append(gaps, Gap{Start: next, Len: n, Kind: classifyGap(next, span)})
	}
	for _, c := range a.Candles {
		flush(c.Time)
		next = iv.windowStart(c.Time, 1)
	}
	flush(a.Range.End)
	return gaps
}

func classifyGap(start time.Time, span time.Duration) string {
	wd := start.UTC().Weekday()

	// Weekend-ish if gap >= 24h and starts Fri/Sat/Sun (UTC heuristic)
	if span >= 24*time.Hour {
		if wd == time.Friday || wd == time.Saturday || wd == time.Sunday {
			return "weekend"
		}
		return "suspicious"
	}

	if span >= 10*time.Minute {
		return "suspicious"
	}

	return "minor"
}

func (a *AggregatedMarketPrices) Stats() GapStats {
	var s GapStats

	if a.Interval.Valid() && !a.Range.IsZero() {
		s.TotalWindows = a.Interval.windowCount(a.Range.Start, a.Range.End)
	}
	s.PresentWindows = len(a.Candles)
	s.MissingWindows = s.TotalWindows - s.PresentWindows

	for _, g := range a.Gaps() {
		s.GapCount++
		if g.Len > s.LongestGap {
			s.LongestGap = g.Len
			s.LongestGapKind = g.Kind
		}
		switch g.Kind {
		case "weekend":
			s.WeekendGaps++
		case "suspicious":
			s.SuspiciousGaps++
		}
	}

	return s
}

func (a *AggregatedMarketPrices) PrintStats(w io.Writer) {
	s := a.Stats()

	fmt.Fprintf(w, "---- %s %s Stats ----\n", a.Symbol, a.Interval.TF())
	fmt.Fprintf(w, "Range: %s → %s\n",
		a.Range.Start.Format(time.RFC3339),
		a.Range.End.Format(time.RFC3339))
	fmt.Fprintf(w, "           Total Windows: %d\n", s.TotalWindows)
	fmt.Fprintf(w, "         Present Windows: %d\n", s.PresentWindows)
	fmt.Fprintf(w, "         Missing Windows: %d\n", s.MissingWindows)
	fmt.Fprintf(w, "              Total Gaps: %d\n", s.GapCount)
	fmt.Fprintf(w, "            Weekend Gaps: %d\n", s.WeekendGaps)
	fmt.Fprintf(w, "         Suspicious Gaps: %d\n", s.SuspiciousGaps)
	fmt.Fprintf(w, "Longest Gap: %d windows (%s)\n",
		s.LongestGap, s.LongestGapKind)
	fmt.Fprintln(w, "--------------------------")
}
