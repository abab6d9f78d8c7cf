package market

import (
	"fmt"
	"strings"
	"time"
)

// Interval is a candle resolution.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval10m Interval = "10m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
)

// Intervals lists every supported resolution, finest first.
var Intervals = []Interval{
	Interval1m, Interval5m, Interval10m, Interval15m, Interval30m, Interval1h, Interval1d,
}

var intervalSeconds = map[Interval]int32{
	Interval1m:  60,
	Interval5m:  300,
	Interval10m: 600,
	Interval15m: 900,
	Interval30m: 1800,
	Interval1h:  3600,
	Interval1d:  86400,
}

// ParseInterval accepts both "5m" style names and broker timeframe strings
// such as "M5" or "H1".
func ParseInterval(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	if _, ok := intervalSeconds[Interval(strings.ToLower(s))]; ok {
		return Interval(strings.ToLower(s)), nil
	}

	sec, err := TFStringToSeconds(strings.ToUpper(s))
	if err != nil {
		return "", fmt.Errorf("unsupported interval %q", s)
	}
	for iv, n := range intervalSeconds {
		if n == sec {
			return iv, nil
		}
	}
	return "", fmt.Errorf("unsupported interval %q", s)
}

// Duration returns zero for unknown intervals.
func (i Interval) Duration() time.Duration {
	return time.Duration(intervalSeconds[i]) * time.Second
}

func (i Interval) Valid() bool {
	_, ok := intervalSeconds[i]
	return ok
}

// TF returns the broker style name (M5, H1, D1).
func (i Interval) TF() string {
	s, err := SecondsToTFString(intervalSeconds[i])
	if err != nil {
		return string(i)
	}
	return s
}

// windowStart returns the start of window idx counted from anchor. Day
// windows step by calendar day in anchor's location, so they stay on local
// midnight across DST changes.
func (i Interval) windowStart(anchor time.Time, idx int64) time.Time {
	if i == Interval1d {
		return anchor.AddDate(0, 0, int(idx))
	}
	return anchor.Add(time.Duration(idx) * i.Duration())
}

// windowIndex returns the window holding t, counted from anchor.
func (i Interval) windowIndex(anchor, t time.Time) int64 {
	idx := int64(t.Sub(anchor) / i.Duration())
	if i != Interval1d {
		return idx
	}
	for !i.windowStart(anchor, idx+1).After(t) {
		idx++
	}
	for i.windowStart(anchor, idx).After(t) {
		idx--
	}
	return idx
}

// windowCount returns how many windows starting at from it takes to reach
// until, counting a partial last window.
func (i Interval) windowCount(from, until time.Time) int {
	if !until.After(from) {
		return 0
	}
	n := i.windowIndex(from, until)
	if i.windowStart(from, n).Before(until) {
		n++
	}
	return int(n)
}

func SecondsToTFString(sec int32) (string, error) {
	if sec <= 0 {
		return "", fmt.Errorf("invalid timeframe seconds: %d", sec)
	}

	// Minutes
	if sec < 3600 && sec%60 == 0 {
		return fmt.Sprintf("M%d", sec/60), nil
	}

	// Hours
	if sec < 86400 && sec%3600 == 0 {
		return fmt.Sprintf("H%d", sec/3600), nil
	}

	if sec == 86400 {
		return "D1", nil
	}

	return "", fmt.Errorf("cannot map timeframe: %d seconds", sec)
}

func TFStringToSeconds(tf string) (int32, error) {
	switch tf {
	case "M1":
		return 60, nil
	case "M5":
		return 300, nil
	case "M10":
		return 600, nil
	case "M15":
		return 900, nil
	case "M30":
		return 1800, nil
	case "H1":
		return 3600, nil
	case "D", "D1":
		return 86400, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe string: %s", tf)
	}
}
