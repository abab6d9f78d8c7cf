package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/tradeledger/ingest"
	"github.com/rustyeddy/tradeledger/market"
)

// EnvPrefix prefixes every environment override, e.g. TRADER_JOURNAL_DRIVER.
const EnvPrefix = "TRADER"

// Config represents the complete ledger configuration
type Config struct {
	Account AccountConfig `json:"account" yaml:"account" envconfig:"ACCOUNT"`
	Import  ImportConfig  `json:"import" yaml:"import" envconfig:"IMPORT"`
	Journal JournalConfig `json:"journal" yaml:"journal" envconfig:"JOURNAL"`
	Prices  PricesConfig  `json:"prices" yaml:"prices" envconfig:"PRICES"`
	Report  ReportConfig  `json:"report" yaml:"report" envconfig:"REPORT"`
	Cache   CacheConfig   `json:"cache" yaml:"cache" envconfig:"CACHE"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics" envconfig:"METRICS"`
	Logging LoggingConfig `json:"logging" yaml:"logging" envconfig:"LOGGING"`
}

// AccountConfig names the default account statements are imported into
type AccountConfig struct {
	ID       string `json:"id" yaml:"id" envconfig:"ID" validate:"required"`
	Location string `json:"location,omitempty" yaml:"location,omitempty" envconfig:"LOCATION"`
}

// ImportConfig contains import pipeline parameters
type ImportConfig struct {
	Policy      string `json:"policy" yaml:"policy" envconfig:"POLICY" validate:"oneof=lenient strict"`
	Workers     int    `json:"workers" yaml:"workers" envconfig:"WORKERS" validate:"gte=0"`
	VendorsFile string `json:"vendors_file,omitempty" yaml:"vendors_file,omitempty" envconfig:"VENDORS_FILE"`

	// Vendors are custom statement layouts declared inline.
	Vendors []*ingest.Vendor `json:"vendors,omitempty" yaml:"vendors,omitempty" ignored:"true" validate:"-"`
}

// JournalConfig selects where canonical records are stored
type JournalConfig struct {
	Driver      string `json:"driver" yaml:"driver" envconfig:"DRIVER" validate:"oneof=sqlite postgres"`
	DBPath      string `json:"db_path,omitempty" yaml:"db_path,omitempty" envconfig:"DB_PATH"`
	PostgresDSN string `json:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty" envconfig:"POSTGRES_DSN"`
}

// PricesConfig selects where market prices are read from
type PricesConfig struct {
	Source        string `json:"source" yaml:"source" envconfig:"SOURCE" validate:"oneof=file sqlite clickhouse"`
	ClickHouseDSN string `json:"clickhouse_dsn,omitempty" yaml:"clickhouse_dsn,omitempty" envconfig:"CLICKHOUSE_DSN"`
	Interval      string `json:"interval" yaml:"interval" envconfig:"INTERVAL" validate:"required"`
}

// ReportConfig contains report defaults
type ReportConfig struct {
	Granularity string `json:"granularity" yaml:"granularity" envconfig:"GRANULARITY" validate:"oneof=day week month"`
	Filter      string `json:"filter" yaml:"filter" envconfig:"FILTER" validate:"oneof=all wins losses"`
}

// CacheConfig contains the Redis report cache settings
type CacheConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled" envconfig:"ENABLED"`
	Addr     string        `json:"addr,omitempty" yaml:"addr,omitempty" envconfig:"ADDR"`
	Password string        `json:"password,omitempty" yaml:"password,omitempty" envconfig:"PASSWORD"`
	DB       int           `json:"db" yaml:"db" envconfig:"DB" validate:"gte=0"`
	TTL      time.Duration `json:"ttl" yaml:"ttl" envconfig:"TTL" validate:"gte=0"`
}

// MetricsConfig points at a node-exporter textfile; empty disables export
type MetricsConfig struct {
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty" envconfig:"NAMESPACE"`
	Textfile  string `json:"textfile,omitempty" yaml:"textfile,omitempty" envconfig:"TEXTFILE"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" envconfig:"FORMAT" validate:"oneof=text json"`
	Output string `json:"output" yaml:"output" envconfig:"OUTPUT" validate:"required"` // "stderr", "stdout" or a file path
}

// Load builds the effective configuration: defaults, then the file at path
// when it exists, then TRADER_* environment variables. A .env file is read
// first so it can feed the environment; envFile overrides ./.env.
func Load(path, envFile string) (*Config, error) {
	if err := LoadDotenv(envFile); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if cfg, err = readFile(path); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDotenv loads path, or ./.env when path is empty and the file exists.
// Variables already set in the environment win.
func LoadDotenv(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// LoadFromFile loads configuration from a file (JSON or YAML based on extension)
func LoadFromFile(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// readFile decodes path over the defaults.
func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	// Determine format by extension
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

var validate = validator.New()

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	var errs []error
	if c.Journal.Driver == "sqlite" && c.Journal.DBPath == "" {
		errs = append(errs, fmt.Errorf("journal.db_path required for sqlite driver"))
	}
	if c.Journal.Driver == "postgres" && c.Journal.PostgresDSN == "" {
		errs = append(errs, fmt.Errorf("journal.postgres_dsn required for postgres driver"))
	}
	if c.Prices.Source == "clickhouse" && c.Prices.ClickHouseDSN == "" {
		errs = append(errs, fmt.Errorf("prices.clickhouse_dsn required for clickhouse source"))
	}
	if _, err := market.ParseInterval(c.Prices.Interval); err != nil {
		errs = append(errs, fmt.Errorf("prices.interval: %w", err))
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		errs = append(errs, fmt.Errorf("cache.addr required when the cache is enabled"))
	}
	if _, err := c.Account.Loc(); err != nil {
		errs = append(errs, err)
	}
	for _, v := range c.Import.Vendors {
		if err := v.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("import.vendors: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Loc resolves the account location, UTC when unset.
func (a AccountConfig) Loc() (*time.Location, error) {
	if a.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(a.Location)
	if err != nil {
		return nil, fmt.Errorf("account.location: %w", err)
	}
	return loc, nil
}

// CustomVendors returns the inline vendors plus those in VendorsFile.
func (c *Config) CustomVendors() ([]*ingest.Vendor, error) {
	out := append([]*ingest.Vendor(nil), c.Import.Vendors...)
	if c.Import.VendorsFile == "" {
		return out, nil
	}
	more, err := ingest.LoadVendors(c.Import.VendorsFile)
	if err != nil {
		return nil, err
	}
	return append(out, more...), nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:       "default",
			Location: "UTC",
		},
		Import: ImportConfig{
			Policy: string(ingest.PolicyLenient),
		},
		Journal: JournalConfig{
			Driver: "sqlite",
			DBPath: "./trader.sqlite",
		},
		Prices: PricesConfig{
			Source:   "sqlite",
			Interval: "1h",
		},
		Report: ReportConfig{
			Granularity: "day",
			Filter:      "all",
		},
		Cache: CacheConfig{
			Addr: "localhost:6379",
			TTL:  10 * time.Minute,
		},
		Metrics: MetricsConfig{
			Namespace: "tradeledger",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
