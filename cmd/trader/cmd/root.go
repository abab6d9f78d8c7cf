package cmd

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeledger/config"
	"github.com/rustyeddy/tradeledger/internal/logging"
	"github.com/rustyeddy/tradeledger/internal/metrics"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "A trading journal for broker statements",
	Long: `Trader keeps a journal of the trades found in broker statements.

It provides tools for:
  - Importing CMC, MetaTrader and XTB statements (CSV or XLSX)
  - Merging open and close legs into one record per trade
  - Day, week and month reports with win rates and net results
  - Aggregating market prices into OHLC candles
  - Querying the journal as Org-mode notes`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

var (
	cfgFile  string
	envFile  string
	dbPath   string
	logLevel string

	cfg       *config.Config
	mtr       *metrics.Metrics
	logCloser io.Closer
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "trader.yaml", "config file (yaml or json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file (default ./.env when present)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "path to the SQLite journal (overrides journal.db_path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides logging.level)")
}

// setup loads the configuration and installs the default logger.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(cfgFile, envFile)
	if err != nil {
		return err
	}
	if dbPath != "" {
		c.Journal.DBPath = dbPath
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	cfg = c

	log, closer, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(log)
	logCloser = closer

	mtr = metrics.New(cfg.Metrics.Namespace)
	slog.Debug("config loaded", slog.String("command", cmd.CommandPath()), slog.String("config", cfgFile))
	return nil
}

// teardown exports metrics and closes the log file.
func teardown(_ *cobra.Command, _ []string) error {
	if cfg != nil {
		if err := mtr.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			slog.Warn("write metrics textfile", slog.Any("error", err))
		}
	}
	if logCloser != nil {
		return logCloser.Close()
	}
	return nil
}
