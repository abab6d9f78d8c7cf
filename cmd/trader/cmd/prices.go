package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeledger/market"
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Load and aggregate market prices",
	Long: `Work with base resolution market prices.

Subcommands:
  load      - Store a Dukascopy or CSV price file in the price store
  aggregate - Fold prices into OHLC candles of a coarser interval

Examples:
  trader prices load --file EURUSD_M1.csv --symbol EURUSD
  trader prices aggregate --symbol EURUSD --interval 1h --from 2024-01-01 --to 2024-01-31
  trader prices aggregate --file EURUSD_M1.txt --interval 15m --gaps`,
}

var pricesLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Store a price file",
	Args:  cobra.NoArgs,
	RunE:  runPricesLoad,
}

var pricesAggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate prices into candles and write them as CSV",
	Args:  cobra.NoArgs,
	RunE:  runPricesAggregate,
}

var (
	pricesFile     string
	pricesSymbol   string
	pricesInterval string
	pricesFrom     string
	pricesTo       string
	pricesGaps     bool
)

func init() {
	rootCmd.AddCommand(pricesCmd)
	pricesCmd.AddCommand(pricesLoadCmd)
	pricesCmd.AddCommand(pricesAggregateCmd)

	pricesCmd.PersistentFlags().StringVarP(&pricesFile, "file", "f", "", "Dukascopy export or time,open,high,low,close[,volume] CSV")
	pricesCmd.PersistentFlags().StringVarP(&pricesSymbol, "symbol", "s", "", "instrument symbol")

	pricesAggregateCmd.Flags().StringVarP(&pricesInterval, "interval", "i", "", "candle interval, e.g. 5m, 1h, H4 (default prices.interval)")
	pricesAggregateCmd.Flags().StringVar(&pricesFrom, "from", "", "first day, YYYY-MM-DD (UTC)")
	pricesAggregateCmd.Flags().StringVar(&pricesTo, "to", "", "last day, YYYY-MM-DD (inclusive)")
	pricesAggregateCmd.Flags().BoolVar(&pricesGaps, "gaps", false, "print window and gap statistics to stderr")
	pricesAggregateCmd.MarkFlagsRequiredTogether("from", "to")

	_ = pricesLoadCmd.MarkFlagRequired("file")
	_ = pricesLoadCmd.MarkFlagRequired("symbol")
}

func runPricesLoad(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	prices, st, err := market.ReadFile(pricesFile)
	if err != nil {
		return err
	}

	store, closeStore, err := openPrices(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.SavePrices(ctx, pricesSymbol, prices); err != nil {
		return fmt.Errorf("save prices: %w", err)
	}

	slog.Info("prices loaded",
		slog.String("symbol", pricesSymbol),
		slog.String("source", cfg.Prices.Source),
		slog.Int("points", len(prices)),
		slog.Int("bad_lines", st.BadLines),
		slog.Int("duplicates", st.Duplicates),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d %s prices (%d bad lines, %d duplicates)\n", len(prices), pricesSymbol, st.BadLines, st.Duplicates)
	return nil
}

func runPricesAggregate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	interval, err := market.ParseInterval(firstNonEmpty(pricesInterval, cfg.Prices.Interval))
	if err != nil {
		return err
	}
	var rng market.Range
	if pricesFrom != "" {
		if rng, err = market.NewRange(pricesFrom, pricesTo, time.UTC); err != nil {
			return err
		}
	}

	var src market.PriceSource
	switch {
	case pricesFile != "":
		src = market.FileSource{Path: pricesFile}
	case cfg.Prices.Source == "file":
		return fmt.Errorf("prices.source is file: pass --file")
	default:
		if pricesSymbol == "" {
			return fmt.Errorf("--symbol is required to read the %s price store", cfg.Prices.Source)
		}
		store, closeStore, err := openPrices(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		src = store
	}

	prices, err := src.Prices(ctx, pricesSymbol, rng)
	if err != nil {
		return fmt.Errorf("load prices: %w", err)
	}

	agg, err := market.Aggregate(prices, interval, rng)
	if err != nil {
		return err
	}
	agg.Symbol = pricesSymbol
	mtr.RecordCandles(string(interval), agg.Len())

	if pricesGaps {
		agg.PrintStats(cmd.ErrOrStderr())
	}
	return writeCandles(cmd.OutOrStdout(), agg)
}

func writeCandles(w io.Writer, agg *market.AggregatedMarketPrices) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, c := range agg.Candles {
		if err := cw.Write([]string{
			c.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
