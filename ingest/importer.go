package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/rustyeddy/tradeledger/internal/logging"
	"github.com/rustyeddy/tradeledger/internal/metrics"
	"github.com/rustyeddy/tradeledger/journal"
)

// Request is one statement to import into one account.
type Request struct {
	Account Account
	Format  Format
	Rows    []Row
	// Policy overrides the importer default when set.
	Policy Policy
}

// Result reports what an import did. It is returned even when the import
// fails, so callers can show the issues.
type Result struct {
	BatchID      string
	Policy       Policy
	Records      []Record
	Issues       Issues
	Trades       int
	Transactions int
	Incomplete   int
	Committed    bool
}

// Importer runs the import pipeline: normalize, reconcile, then commit the
// batch through the sink in one transaction.
type Importer struct {
	Sink       journal.Sink
	Vendors    *Registry
	Normalizer Normalizer
	Policy     Policy
	Locks      *AccountLocks
	Metrics    *metrics.Metrics
	Log        *slog.Logger

	// OnCommit runs after a batch is stored, e.g. to drop cached reports.
	OnCommit func(ctx context.Context, account string) error
}

func (im *Importer) logger() *slog.Logger {
	if im.Log == nil {
		return slog.Default()
	}
	return im.Log
}

// Import imports one statement. Sink errors are returned as is and never
// retried. Under strict policy a batch with conflicts or incomplete records
// returns an error wrapping ErrStrictAbort and nothing is stored.
func (im *Importer) Import(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	policy := req.Policy
	if policy == "" {
		policy = im.Policy
	}
	if policy == "" {
		policy = PolicyLenient
	}

	res := &Result{BatchID: uuid.NewString(), Policy: policy}
	ctx = logging.WithBatchID(ctx, res.BatchID)
	log := im.logger().With(
		slog.String("account", req.Account.ID),
		slog.String("format", string(req.Format)),
		slog.String("policy", string(policy)),
	)

	vendor, err := im.Vendors.Lookup(req.Format)
	if err != nil {
		return res, err
	}

	if im.Locks != nil {
		unlock := im.Locks.Lock(req.Account.ID)
		defer unlock()
	}

	legs, issues, err := im.Normalizer.NormalizeAll(ctx, req.Rows, vendor, req.Account)
	if err != nil {
		return res, fmt.Errorf("normalize: %w", err)
	}
	im.Metrics.RecordRows(string(vendor.Format), len(legs))
	res.Issues = append(res.Issues, issues...)

	rec, rerr := Reconcile(slices.Values(legs), policy)
	res.Records = rec.Records
	res.Issues = append(res.Issues, rec.Issues...)
	res.Incomplete = rec.Incomplete()
	for _, is := range res.Issues {
		im.Metrics.RecordIssue(string(is.Kind))
		log.WarnContext(ctx, "import issue", slog.String("kind", string(is.Kind)), slog.Int("row", is.Row), slog.Any("error", is.Err))
	}

	if rerr != nil {
		im.Metrics.RecordImport(string(vendor.Format), "aborted", 0, 0, time.Since(start).Seconds(), 0)
		log.ErrorContext(ctx, "import aborted", slog.Any("error", rerr))
		return res, rerr
	}

	batch := journal.Batch{ID: res.BatchID, Account: req.Account.ID, Source: string(vendor.Format)}
	for _, r := range rec.Records {
		switch r.Kind {
		case KindTransaction:
			batch.Transactions = append(batch.Transactions, r.Transaction(req.Account.ID, string(vendor.Format)))
		default:
			batch.Trades = append(batch.Trades, r.Trade(req.Account.ID, string(vendor.Format)))
		}
	}
	res.Trades = len(batch.Trades)
	res.Transactions = len(batch.Transactions)

	if err := im.Sink.SaveBatch(ctx, batch); err != nil {
		im.Metrics.RecordImport(string(vendor.Format), "failed", 0, 0, time.Since(start).Seconds(), 0)
		return res, fmt.Errorf("save batch %s: %w", res.BatchID, err)
	}
	res.Committed = true
	im.Metrics.RecordImport(string(vendor.Format), "committed", res.Trades, res.Transactions,
		time.Since(start).Seconds(), time.Now().Unix())

	if im.OnCommit != nil {
		if err := im.OnCommit(ctx, req.Account.ID); err != nil {
			log.WarnContext(ctx, "post commit hook failed", slog.Any("error", err))
		}
	}

	log.InfoContext(ctx, "import committed",
		slog.Int("trades", res.Trades),
		slog.Int("transactions", res.Transactions),
		slog.Int("incomplete", res.Incomplete),
		slog.Int("issues", len(res.Issues)),
		slog.Duration("took", time.Since(start)),
	)
	return res, nil
}

// IsStrictAbort reports whether err is a strict policy rejection.
func IsStrictAbort(err error) bool {
	return errors.Is(err, ErrStrictAbort)
}
