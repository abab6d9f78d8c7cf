package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeledger/journal"
	"github.com/rustyeddy/tradeledger/market"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and display canonical trade records.

Subcommands:
  trade  - Get details of a specific trade by ID
  today  - List trades closed today
  day    - List trades closed on a specific day
  export - Write an account's trades or transactions as CSV

Examples:
  trader journal trade <trade-id>
  trader journal today
  trader journal day 2024-01-15 --account demo
  trader journal export --transactions`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades closed today",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return listDay(cmd, time.Now())
	},
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write trades or transactions as CSV",
	Args:  cobra.NoArgs,
	RunE:  runJournalExport,
}

var (
	journalAccount      string
	journalTransactions bool
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalExportCmd)

	journalCmd.PersistentFlags().StringVarP(&journalAccount, "account", "a", "", "limit to one account (day, today) or pick the account (export)")
	journalExportCmd.Flags().BoolVar(&journalTransactions, "transactions", false, "export cash movements instead of trades")
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	j, closeStore, err := openJournal(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	rec, err := j.GetTrade(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
	return nil
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	loc, err := cfg.Account.Loc()
	if err != nil {
		return err
	}
	day, err := time.ParseInLocation("2006-01-02", args[0], loc)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	return listDay(cmd, day)
}

// listDay prints the trades closed on day, in the account location. Without
// --account every account is listed; with it, trades still open that were
// opened on day are included too.
func listDay(cmd *cobra.Command, day time.Time) error {
	ctx := cmd.Context()
	loc, err := cfg.Account.Loc()
	if err != nil {
		return err
	}
	start, end := journal.DayBounds(day, loc)

	j, closeStore, err := openJournal(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var recs []journal.Trade
	if journalAccount == "" {
		recs, err = j.ListTradesClosedBetween(ctx, start, end)
	} else {
		recs, err = j.ListTrades(ctx, journal.TradeQuery{
			Account: journalAccount,
			Range:   market.Range{Start: start, End: end},
		})
	}
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

func runJournalExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	account := firstNonEmpty(journalAccount, cfg.Account.ID)

	j, closeStore, err := openJournal(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if journalTransactions {
		txs, err := j.ListTransactions(ctx, account)
		if err != nil {
			return fmt.Errorf("query transactions: %w", err)
		}
		return journal.WriteTransactionsCSV(cmd.OutOrStdout(), txs)
	}

	trades, err := j.ListTrades(ctx, journal.TradeQuery{Account: account})
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	return journal.WriteTradesCSV(cmd.OutOrStdout(), trades)
}
