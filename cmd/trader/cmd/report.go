package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeledger/internal/cache"
	"github.com/rustyeddy/tradeledger/journal"
	"github.com/rustyeddy/tradeledger/market"
	"github.com/rustyeddy/tradeledger/stats"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Roll closed trades into day, week or month buckets",
	Long: `Build a trade record report for one account. Every bucket in the range
is listed, empty ones included. Trades without a close time are counted
separately as incomplete.

Examples:
  trader report --from 2024-01-01 --to 2024-03-31 --granularity week
  trader report --from 2024-01-01 --to 2024-12-31 --filter losses --csv
  trader report --controls`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

var (
	reportAccount     string
	reportFrom        string
	reportTo          string
	reportGranularity string
	reportFilter      string
	reportControls    bool
	reportCSV         bool
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportAccount, "account", "a", "", "account id (default account.id)")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "first day, YYYY-MM-DD")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "last day, YYYY-MM-DD (inclusive)")
	reportCmd.Flags().StringVarP(&reportGranularity, "granularity", "g", "", "day, week or month (default report.granularity)")
	reportCmd.Flags().StringVar(&reportFilter, "filter", "", "all, wins or losses (default report.filter)")
	reportCmd.Flags().BoolVar(&reportControls, "controls", false, "print only the year/month index")
	reportCmd.Flags().BoolVar(&reportCSV, "csv", false, "write the buckets as CSV")
	reportCmd.MarkFlagsRequiredTogether("from", "to")
	reportCmd.MarkFlagsMutuallyExclusive("controls", "csv")
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	g, err := stats.ParseGranularity(firstNonEmpty(reportGranularity, cfg.Report.Granularity))
	if err != nil {
		return err
	}
	f, err := stats.ParseFilter(firstNonEmpty(reportFilter, cfg.Report.Filter))
	if err != nil {
		return err
	}
	loc, err := cfg.Account.Loc()
	if err != nil {
		return err
	}
	var rng market.Range
	if reportFrom != "" {
		if rng, err = market.NewRange(reportFrom, reportTo, loc); err != nil {
			return err
		}
	}
	account := firstNonEmpty(reportAccount, cfg.Account.ID)

	store, closeStore, err := openJournal(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	reports := openCache(ctx)
	defer reports.Close()

	rep, err := reports.GetOrBuild(ctx, cache.ReportKey(account, g, f, rng), func(ctx context.Context) (*stats.Report, error) {
		trades, err := store.ListTrades(ctx, journal.TradeQuery{Account: account, Range: rng})
		if err != nil {
			return nil, fmt.Errorf("query trades: %w", err)
		}
		mtr.RecordReport()
		return stats.BuildReport(trades, g, f, rng)
	})
	if err != nil {
		return err
	}

	switch {
	case reportCSV:
		return stats.WriteCSV(cmd.OutOrStdout(), rep)
	case reportControls:
		return printControls(cmd.OutOrStdout(), stats.BuildControls(rep))
	default:
		return stats.FormatOrg(cmd.OutOrStdout(), stats.OrgReport{Account: account, Report: rep})
	}
}

func printControls(w io.Writer, c *stats.Controls) error {
	for _, y := range c.Years {
		if _, err := fmt.Fprintf(w, "%d  %4d trades  %10s\n", y.Year, y.Trades, y.NetResult.StringFixed(2)); err != nil {
			return err
		}
		for _, m := range y.Months {
			mark := ""
			if !m.HasTrades {
				mark = "  (empty)"
			}
			if _, err := fmt.Fprintf(w, "  %-9s %4d trades  %10s  buckets %d-%d%s\n",
				m.Month, m.Trades, m.NetResult.StringFixed(2), m.First, m.Last, mark); err != nil {
				return err
			}
		}
	}
	return nil
}
