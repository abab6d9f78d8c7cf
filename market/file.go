package market

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Dukascopy/HistData ASCII exports are stamped in EST without DST.
var estNoDST = time.FixedZone("EST", -5*60*60)

const layout = "20060102 150405"

// IngestStats counts the lines a reader skipped.
type IngestStats struct {
	Lines      int
	BadLines   int
	Duplicates int
}

// ReadDukascopy parses semicolon separated M1 bars:
//
//	20250101 180000;1.035030;1.035140;1.035030;1.035140;0
//
// Bad lines are counted and skipped. Duplicate timestamps keep the first bar.
func ReadDukascopy(r io.Reader) ([]MarketPrice, IngestStats, error) {
	var st IngestStats

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	seen := make(map[int64]struct{})
	var out []MarketPrice
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "time;") || strings.HasPrefix(line, "Time;") {
			continue
		}
		st.Lines++

		parts := strings.Split(line, ";")
		if len(parts) < 5 {
			st.BadLines++
			continue
		}
		ts, err := parseToUnix(parts[0])
		if err != nil {
			st.BadLines++
			continue
		}
		if _, dup := seen[ts]; dup {
			st.Duplicates++
			continue
		}

		vals, err := parseFloats(parts[1:5])
		if err != nil {
			st.BadLines++
			continue
		}
		var vol float64
		if len(parts) > 5 {
			vol, _ = strconv.ParseFloat(strings.TrimSpace(parts[5]), 64)
		}

		seen[ts] = struct{}{}
		out = append(out, MarketPrice{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vol,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, st, err
	}
	return out, st, nil
}

// ReadCSV parses comma separated rows of time,open,high,low,close[,volume]
// with RFC3339 times. A header row is detected by "time" in column 0.
func ReadCSV(r io.Reader) ([]MarketPrice, IngestStats, error) {
	var st IngestStats

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	seen := make(map[int64]struct{})
	var out []MarketPrice
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, st, err
		}
		if len(row) == 0 || strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}
		st.Lines++

		if len(row) < 5 {
			st.BadLines++
			continue
		}
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(row[0]))
		if err != nil {
			st.BadLines++
			continue
		}
		if _, dup := seen[t.UnixNano()]; dup {
			st.Duplicates++
			continue
		}
		vals, err := parseFloats(row[1:5])
		if err != nil {
			st.BadLines++
			continue
		}
		var vol float64
		if len(row) > 5 {
			vol, _ = strconv.ParseFloat(strings.TrimSpace(row[5]), 64)
		}

		seen[t.UnixNano()] = struct{}{}
		out = append(out, MarketPrice{
			Time:   t.UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vol,
		})
	}
	return out, st, nil
}

// ReadFile reads a price file. Files ending in .csv are read with ReadCSV,
// everything else as a Dukascopy export.
func ReadFile(path string) ([]MarketPrice, IngestStats, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, IngestStats{}, err
	}
	defer fh.Close()

	var (
		prices []MarketPrice
		st     IngestStats
	)
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		prices, st, err = ReadCSV(fh)
	} else {
		prices, st, err = ReadDukascopy(fh)
	}
	if err != nil {
		return nil, st, fmt.Errorf("read %s: %w", path, err)
	}
	return prices, st, nil
}

// FileSource serves one price file as a PriceSource.
type FileSource struct {
	Path string
}

func (f FileSource) Prices(_ context.Context, _ string, rng Range) ([]MarketPrice, error) {
	prices, _, err := ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	if rng.IsZero() {
		return prices, nil
	}

	out := prices[:0]
	for _, p := range prices {
		if rng.Contains(p.Time) {
			out = append(out, p)
		}
	}
	return out, nil
}

func parseToUnix(s string) (int64, error) {
	t, err := time.ParseInLocation(layout, strings.TrimSpace(s), estNoDST)
	if err != nil {
		return 0, err
	}
	u := t.UTC().Unix()
	if u%60 != 0 {
		return 0, fmt.Errorf("timestamp not minute-aligned: %q -> %d", s, u)
	}
	return u, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, s := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}
