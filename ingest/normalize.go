package ingest

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Normalizer turns statement rows into WrapperRecords. It holds no state
// between rows, so rows are normalized concurrently.
type Normalizer struct {
	// Workers bounds the number of rows in flight. Zero means GOMAXPROCS.
	Workers int
}

// Normalize converts one row. Failures are *ParsingError values naming the
// row and the column.
func (n Normalizer) Normalize(row Row, v *Vendor, acct Account) (WrapperRecord, error) {
	p := rowParser{row: row, v: v, loc: v.location(acct)}

	w := WrapperRecord{Row: row.Index}

	id, ok := p.str(FieldID)
	if !ok {
		return WrapperRecord{}, p.fail(FieldID, ErrMissingField)
	}
	w.ID = id

	tok, ok := p.str(FieldType)
	if !ok {
		return WrapperRecord{}, p.fail(FieldType, ErrMissingField)
	}
	rule, ok := v.Types[strings.ToLower(tok)]
	if !ok {
		return WrapperRecord{}, p.fail(FieldType, fmt.Errorf("unknown type %q", tok))
	}
	w.Kind = rule.Kind
	w.Direction = rule.Direction
	w.TxType = rule.TxType

	ts, ok, err := p.parseTime(FieldTime)
	if err != nil {
		return WrapperRecord{}, err
	}
	if !ok {
		return WrapperRecord{}, p.fail(FieldTime, ErrMissingField)
	}
	w.Time = ts

	openTime, _, err := p.parseTime(FieldOpenTime)
	if err != nil {
		return WrapperRecord{}, err
	}
	closeTime, _, err := p.parseTime(FieldCloseTime)
	if err != nil {
		return WrapperRecord{}, err
	}

	w.Symbol, _ = p.str(FieldSymbol)

	nums := map[Field]*decimal.NullDecimal{}
	for _, f := range []Field{FieldPrice, FieldOpenPrice, FieldClosePrice, FieldLots, FieldProfit,
		FieldCommission, FieldSwap, FieldAmount} {
		d, err := p.decimal(f)
		if err != nil {
			return WrapperRecord{}, err
		}
		nums[f] = &d
	}
	if !nums[FieldPrice].Valid && !nums[FieldOpenPrice].Valid && !nums[FieldClosePrice].Valid &&
		!nums[FieldProfit].Valid && !nums[FieldAmount].Valid {
		return WrapperRecord{}, p.fail(FieldAmount, ErrMissingField)
	}

	w.Lots = *nums[FieldLots]
	w.Commission = *nums[FieldCommission]
	w.Swap = *nums[FieldSwap]
	if w.Kind == KindTransaction {
		w.Amount = firstValid(*nums[FieldAmount], *nums[FieldProfit])
	} else {
		w.Profit = *nums[FieldProfit]
		w.Amount = *nums[FieldAmount]
	}

	leg := rule.Leg
	if v.Shape == ShapeSingle {
		leg = LegSingle
	}
	w.Leg = leg
	switch leg {
	case LegOpen:
		w.OpenTime = orTime(openTime, ts)
		w.EntryPrice = firstValid(*nums[FieldOpenPrice], *nums[FieldPrice])
	case LegClose:
		w.OpenTime = openTime
		w.CloseTime = orTime(closeTime, ts)
		w.EntryPrice = *nums[FieldOpenPrice]
		w.ExitPrice = firstValid(*nums[FieldClosePrice], *nums[FieldPrice])
		w.Closed = true
	case LegSingle:
		w.OpenTime = orTime(openTime, ts)
		w.CloseTime = orTime(closeTime, ts)
		w.EntryPrice = firstValid(*nums[FieldOpenPrice], *nums[FieldPrice])
		w.ExitPrice = *nums[FieldClosePrice]
		w.Closed = true
	}

	return w, nil
}

// NormalizeAll normalizes rows concurrently and returns the records in row
// order. Header rows and blank rows are skipped. Rows that fail are
// reported as parsing issues; only a cancelled context is an error.
func (n Normalizer) NormalizeAll(ctx context.Context, rows []Row, v *Vendor, acct Account) ([]WrapperRecord, Issues, error) {
	recs := make([]WrapperRecord, len(rows))
	errs := make([]error, len(rows))
	skip := make([]bool, len(rows))

	workers := n.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, row := range rows {
		if row.Index < v.HeaderRows || row.blank() {
			skip[i] = true
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			recs[i], errs[i] = n.Normalize(row, v, acct)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := make([]WrapperRecord, 0, len(rows))
	var issues Issues
	for i := range rows {
		switch {
		case skip[i]:
		case errs[i] != nil:
			issues = append(issues, Issue{Kind: IssueParsing, Row: rows[i].Index, Err: errs[i]})
		default:
			out = append(out, recs[i])
		}
	}
	return out, issues, nil
}

type rowParser struct {
	row Row
	v   *Vendor
	loc *time.Location
}

func (p rowParser) fail(f Field, cause error) error {
	return &ParsingError{Row: p.row.Index, Column: string(f), Cause: cause}
}

func (p rowParser) str(f Field) (string, bool) {
	idx, ok := p.v.Columns[f]
	if !ok || idx >= len(p.row.Fields) {
		return "", false
	}
	s := strings.TrimSpace(p.row.Fields[idx])
	return s, s != ""
}

func (p rowParser) parseTime(f Field) (time.Time, bool, error) {
	s, ok := p.str(f)
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := time.ParseInLocation(p.v.TimeLayout, s, p.loc)
	if err != nil {
		return time.Time{}, false, p.fail(f, err)
	}
	return t, true, nil
}

func (p rowParser) decimal(f Field) (decimal.NullDecimal, error) {
	s, ok := p.str(f)
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseNumber(s, p.v.Decimal, p.v.Thousands)
	if err != nil {
		return decimal.NullDecimal{}, p.fail(f, err)
	}
	return decimal.NewNullDecimal(d), nil
}

// parseNumber reads a localized number such as "1 234,56" or "(12.50)".
func parseNumber(s, dec, thousands string) (decimal.Decimal, error) {
	raw := s
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	if thousands != "" {
		s = strings.ReplaceAll(s, thousands, "")
		if thousands == " " {
			s = strings.ReplaceAll(s, "\u00a0", "")
		}
	}
	if dec != "" && dec != "." {
		s = strings.ReplaceAll(s, dec, ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("bad number %q", raw)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

func firstValid(ds ...decimal.NullDecimal) decimal.NullDecimal {
	for _, d := range ds {
		if d.Valid {
			return d
		}
	}
	return decimal.NullDecimal{}
}

func orTime(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}
