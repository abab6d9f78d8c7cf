package ingest

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/pkg/id"
)

type Policy string

const (
	// PolicyLenient keeps incomplete records and reports conflicts.
	PolicyLenient Policy = "lenient"
	// PolicyStrict rejects the batch on any conflict or incomplete record.
	PolicyStrict Policy = "strict"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyLenient:
		return PolicyLenient, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown policy %q (lenient|strict)", s)
	}
}

// Reconciliation is the outcome of one pass: one record per identifier plus
// the issues found on the way.
type Reconciliation struct {
	Records []Record
	Issues  Issues
}

func (r *Reconciliation) Incomplete() int {
	n := 0
	for _, rec := range r.Records {
		if !rec.Complete {
			n++
		}
	}
	return n
}

type entryState int

const (
	statePending entryState = iota
	stateMerged
)

// entry is either a pending leg waiting for its counterpart or the marker
// that an identifier has been merged and emitted.
type entry struct {
	state entryState
	leg   WrapperRecord
	rows  []int
}

// Reconciler folds legs sharing an identifier into canonical records. It is
// not safe for concurrent use; one Reconciler serves one batch.
type Reconciler struct {
	entries map[string]*entry
	order   []string
	result  Reconciliation
}

func NewReconciler() *Reconciler {
	return &Reconciler{entries: make(map[string]*entry)}
}

// Add feeds one leg.
func (r *Reconciler) Add(w WrapperRecord) {
	e, ok := r.entries[w.ID]
	if !ok {
		r.entries[w.ID] = &entry{state: statePending, leg: w, rows: []int{w.Row}}
		r.order = append(r.order, w.ID)
		return
	}

	if e.state == stateMerged {
		r.conflict(w, "leg arrived after the record was already closed")
		return
	}
	if e.leg.Closed && w.Closed {
		r.conflict(w, fmt.Sprintf("duplicate close, first seen on row %d", e.leg.Row))
		return
	}
	if reason := legConflict(e.leg, w); reason != "" {
		r.conflict(w, reason)
		return
	}

	merged := mergeLegs(e.leg, w)
	e.rows = append(e.rows, w.Row)
	e.leg = merged
	if !merged.Closed {
		// two opening legs; keep waiting for the close
		return
	}
	e.state = stateMerged
	r.result.Records = append(r.result.Records, finalize(merged, true, e.rows))
}

// Finish emits every leg still pending and returns the pass result. Single
// legs are complete; an unmatched open or close leg is incomplete.
func (r *Reconciler) Finish() *Reconciliation {
	for _, key := range r.order {
		e := r.entries[key]
		if e.state != statePending {
			continue
		}
		complete := e.leg.Leg == LegSingle && len(e.rows) == 1
		rec := finalize(e.leg, complete, e.rows)
		if !complete {
			missing := "closing"
			if e.leg.Closed {
				missing = "opening"
			}
			r.result.Issues = append(r.result.Issues, Issue{
				Kind: IssueIncomplete,
				Row:  e.leg.Row,
				ID:   key,
				Err:  fmt.Errorf("%w: %s has no %s leg", ErrIncomplete, key, missing),
			})
		}
		r.result.Records = append(r.result.Records, rec)
		e.state = stateMerged
	}
	res := r.result
	return &res
}

func (r *Reconciler) conflict(w WrapperRecord, reason string) {
	r.result.Issues = append(r.result.Issues, Issue{
		Kind: IssueConflict,
		Row:  w.Row,
		ID:   w.ID,
		Err:  &ConflictError{ID: w.ID, Row: w.Row, Reason: reason},
	})
}

// Reconcile runs one pass over seq. Under PolicyStrict a pass with any
// conflict or incomplete record returns an error wrapping ErrStrictAbort
// together with the result, so callers can still report the issues.
func Reconcile(seq iter.Seq[WrapperRecord], policy Policy) (*Reconciliation, error) {
	r := NewReconciler()
	for w := range seq {
		r.Add(w)
	}
	res := r.Finish()
	if policy == PolicyStrict && res.Issues.Fatal() {
		return res, fmt.Errorf("%w: %d conflicts, %d incomplete",
			ErrStrictAbort, res.Issues.Count(IssueConflict), res.Issues.Count(IssueIncomplete))
	}
	return res, nil
}

// legConflict compares values that must agree on both legs. Charges are
// not compared; each leg carries its own.
func legConflict(a, b WrapperRecord) string {
	switch {
	case a.Kind != b.Kind:
		return fmt.Sprintf("kind %s vs %s", a.Kind, b.Kind)
	case a.Symbol != "" && b.Symbol != "" && a.Symbol != b.Symbol:
		return fmt.Sprintf("symbol %s vs %s", a.Symbol, b.Symbol)
	case a.Direction != "" && b.Direction != "" && a.Direction != b.Direction:
		return fmt.Sprintf("direction %s vs %s", a.Direction, b.Direction)
	case a.TxType != "" && b.TxType != "" && a.TxType != b.TxType:
		return fmt.Sprintf("type %s vs %s", a.TxType, b.TxType)
	case a.Lots.Valid && b.Lots.Valid && !a.Lots.Decimal.Equal(b.Lots.Decimal):
		return fmt.Sprintf("lots %s vs %s", a.Lots.Decimal, b.Lots.Decimal)
	case differs(a.EntryPrice, b.EntryPrice):
		return fmt.Sprintf("entry price %s vs %s", a.EntryPrice.Decimal, b.EntryPrice.Decimal)
	case differs(a.ExitPrice, b.ExitPrice):
		return fmt.Sprintf("exit price %s vs %s", a.ExitPrice.Decimal, b.ExitPrice.Decimal)
	case differs(a.Profit, b.Profit):
		return fmt.Sprintf("profit %s vs %s", a.Profit.Decimal, b.Profit.Decimal)
	case differs(a.Amount, b.Amount):
		return fmt.Sprintf("amount %s vs %s", a.Amount.Decimal, b.Amount.Decimal)
	}
	return ""
}

func differs(a, b decimal.NullDecimal) bool {
	return a.Valid && b.Valid && !a.Decimal.Equal(b.Decimal)
}

// mergeLegs folds incoming into prev. Fields defined on incoming win, except
// commission and swap, which are charged per leg and summed. The open time
// is the earliest known open, the close time the latest known close; missing
// ones fall back to the row timestamps.
func mergeLegs(prev, incoming WrapperRecord) WrapperRecord {
	m := prev
	m.Row = incoming.Row
	if incoming.Symbol != "" {
		m.Symbol = incoming.Symbol
	}
	if incoming.Direction != "" {
		m.Direction = incoming.Direction
	}
	if incoming.TxType != "" {
		m.TxType = incoming.TxType
	}
	m.EntryPrice = firstValid(incoming.EntryPrice, prev.EntryPrice)
	m.ExitPrice = firstValid(incoming.ExitPrice, prev.ExitPrice)
	m.Lots = firstValid(incoming.Lots, prev.Lots)
	m.Profit = firstValid(incoming.Profit, prev.Profit)
	m.Commission = sumValid(prev.Commission, incoming.Commission)
	m.Swap = sumValid(prev.Swap, incoming.Swap)
	m.Amount = firstValid(incoming.Amount, prev.Amount)
	m.Closed = prev.Closed || incoming.Closed

	earlier, later := prev, incoming
	if incoming.Time.Before(prev.Time) {
		earlier, later = incoming, prev
	}
	m.Time = earlier.Time

	m.OpenTime = earliest(prev.OpenTime, incoming.OpenTime)
	if m.OpenTime.IsZero() {
		m.OpenTime = earlier.Time
	}
	m.CloseTime = latest(prev.CloseTime, incoming.CloseTime)
	if m.CloseTime.IsZero() && m.Closed {
		m.CloseTime = later.Time
	}
	return m
}

func finalize(w WrapperRecord, complete bool, rows []int) Record {
	rec := Record{
		ExternalID: w.ID,
		Kind:       w.Kind,
		Symbol:     w.Symbol,
		Direction:  w.Direction,
		TxType:     w.TxType,
		OpenTime:   w.OpenTime,
		CloseTime:  w.CloseTime,
		EntryPrice: w.EntryPrice.Decimal,
		ExitPrice:  w.ExitPrice.Decimal,
		Lots:       w.Lots.Decimal,
		Profit:     w.Profit.Decimal,
		Commission: w.Commission.Decimal,
		Swap:       w.Swap.Decimal,
		Amount:     w.Amount.Decimal,
		Complete:   complete,
		Rows:       slices.Clone(rows),
	}
	if rec.OpenTime.IsZero() {
		rec.OpenTime = w.Time
	}
	if !complete {
		rec.CloseTime = time.Time{}
	}
	rec.ID = id.NewAt(rec.OpenTime)

	switch {
	case w.Kind == KindTransaction:
		rec.NetResult = rec.Amount
	default:
		if complete && w.EntryPrice.Valid && w.ExitPrice.Valid {
			rec.Points = rec.ExitPrice.Sub(rec.EntryPrice).Mul(decimal.NewFromInt(w.Direction.Sign()))
		}
		if w.Profit.Valid {
			rec.NetResult = rec.Profit
		} else {
			size := decimal.NewFromInt(1)
			if w.Lots.Valid {
				size = rec.Lots
			}
			rec.NetResult = rec.Points.Mul(size)
		}
		rec.NetResult = rec.NetResult.Add(rec.Commission).Add(rec.Swap)
	}
	return rec
}

func earliest(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.Before(a):
		return b
	}
	return a
}

func latest(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.After(a):
		return b
	}
	return a
}

func sumValid(a, b decimal.NullDecimal) decimal.NullDecimal {
	switch {
	case !a.Valid:
		return b
	case !b.Valid:
		return a
	}
	return decimal.NewNullDecimal(a.Decimal.Add(b.Decimal))
}
