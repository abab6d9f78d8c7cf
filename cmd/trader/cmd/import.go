package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeledger/ingest"
	"github.com/rustyeddy/tradeledger/internal/rowsource"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a broker statement into the journal",
	Long: `Normalize every row of a statement, merge the legs of each trade and
store the resulting records in one transaction.

With --policy strict the whole statement is rejected when a trade has
conflicting legs or is missing its closing leg.

Examples:
  trader import --file history.csv --format cmc --account demo
  trader import --file cash.xlsx --format xtb --sheet "Cash Operations"`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

var (
	importFile    string
	importFormat  string
	importAccount string
	importPolicy  string
	importSheet   string

	// imports in one process share the locks; the journal store serializes
	// commits across processes.
	importLocks = &ingest.AccountLocks{}
)

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "statement file, .csv or .xlsx (required)")
	importCmd.Flags().StringVar(&importFormat, "format", "", "statement format (cmc, metatrader, xtb or a custom vendor)")
	importCmd.Flags().StringVarP(&importAccount, "account", "a", "", "account id (default account.id)")
	importCmd.Flags().StringVar(&importPolicy, "policy", "", "lenient or strict (default import.policy)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "worksheet of an .xlsx statement (default first sheet)")
	_ = importCmd.MarkFlagRequired("file")
	_ = importCmd.MarkFlagRequired("format")
}

func runImport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	policy, err := ingest.ParsePolicy(firstNonEmpty(importPolicy, cfg.Import.Policy))
	if err != nil {
		return err
	}
	loc, err := cfg.Account.Loc()
	if err != nil {
		return err
	}
	account := ingest.Account{ID: firstNonEmpty(importAccount, cfg.Account.ID), Location: loc}

	custom, err := cfg.CustomVendors()
	if err != nil {
		return fmt.Errorf("load vendors: %w", err)
	}
	vendors, err := ingest.NewRegistry(custom...)
	if err != nil {
		return err
	}
	vendor, err := vendors.Lookup(ingest.Format(importFormat))
	if err != nil {
		return err
	}

	rows, err := rowsource.Open(ctx, importFile, vendor, importSheet)
	if err != nil {
		return fmt.Errorf("read statement: %w", err)
	}

	store, closeStore, err := openJournal(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	reports := openCache(ctx)
	defer reports.Close()

	im := &ingest.Importer{
		Sink:       store,
		Vendors:    vendors,
		Normalizer: ingest.Normalizer{Workers: cfg.Import.Workers},
		Policy:     policy,
		Locks:      importLocks,
		Metrics:    mtr,
		Log:        slog.Default(),
		OnCommit: func(ctx context.Context, account string) error {
			n, err := reports.InvalidateAccount(ctx, account)
			if n > 0 {
				slog.DebugContext(ctx, "cached reports dropped", slog.Int("keys", n))
			}
			return err
		},
	}

	res, err := im.Import(ctx, ingest.Request{
		Account: account,
		Format:  vendor.Format,
		Rows:    rows,
	})
	printImportResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
	return err
}

func printImportResult(out, errOut io.Writer, res *ingest.Result) {
	if res == nil {
		return
	}
	for _, is := range res.Issues {
		fmt.Fprintf(errOut, "  row %d: %s\n", is.Row, is)
	}

	status := "committed"
	if !res.Committed {
		status = "not stored"
	}
	fmt.Fprintf(out, "Batch %s (%s): %s\n", res.BatchID, res.Policy, status)
	fmt.Fprintf(out, "  Trades:       %d\n", res.Trades)
	fmt.Fprintf(out, "  Transactions: %d\n", res.Transactions)
	fmt.Fprintf(out, "  Incomplete:   %d\n", res.Incomplete)
	fmt.Fprintf(out, "  Issues:       %d parsing, %d conflict, %d incomplete\n",
		res.Issues.Count(ingest.IssueParsing),
		res.Issues.Count(ingest.IssueConflict),
		res.Issues.Count(ingest.IssueIncomplete))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
