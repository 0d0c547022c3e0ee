// Package config loads the YAML configuration file and applies environment
// variable overrides.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tradesim tools.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Logging  Logging        `yaml:"logging"`
	Gather   GatherConfig   `yaml:"gather"`
	Venue    VenueConfig    `yaml:"venue"`
	Backtest BacktestConfig `yaml:"backtest"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Alpaca holds credentials and endpoints for the Alpaca data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GatherConfig controls historical data gathering.
type GatherConfig struct {
	StartDate       string   `yaml:"start_date"`
	EndDate         string   `yaml:"end_date"`
	Symbols         []string `yaml:"symbols"`
	BarSpec         string   `yaml:"bar_spec"`
	IncludeTrades   bool     `yaml:"include_trades"`
	BatchSize       int      `yaml:"batch_size"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
}

// VenueConfig assembles the simulated exchange.
type VenueConfig struct {
	Name                    string      `yaml:"name"`
	OmsType                 string      `yaml:"oms_type"`      // NETTING or HEDGING
	AccountType             string      `yaml:"account_type"`  // CASH or MARGIN
	BookType                string      `yaml:"book_type"`     // L1_TBBO, L2_MBP, L3_MBO
	StartingBalances        []string    `yaml:"starting_balances"` // e.g. "1000000 USD"
	DefaultLeverage         float64     `yaml:"default_leverage"`
	RejectStopOrders        bool        `yaml:"reject_stop_orders"`
	SupportContingentOrders bool        `yaml:"support_contingent_orders"`
	FrozenAccount           bool        `yaml:"frozen_account"`
	Seed                    int64       `yaml:"seed"`
	Latency                 Latency     `yaml:"latency"`
	FillModel               FillModel   `yaml:"fill_model"`
	Instruments             []Instrument `yaml:"instruments"`
}

// Latency holds the fixed latency model components in nanoseconds.
type Latency struct {
	BaseNs   int64 `yaml:"base_ns"`
	InsertNs int64 `yaml:"insert_ns"`
	UpdateNs int64 `yaml:"update_ns"`
	DeleteNs int64 `yaml:"delete_ns"`
}

// FillModel holds the probabilistic fill parameters.
type FillModel struct {
	ProbFillOnLimit float64 `yaml:"prob_fill_on_limit"`
	ProbFillOnStop  float64 `yaml:"prob_fill_on_stop"`
	ProbSlippage    float64 `yaml:"prob_slippage"`
}

// Instrument defines one tradeable instrument.
type Instrument struct {
	Symbol         string  `yaml:"symbol"`
	BaseCurrency   string  `yaml:"base_currency"`
	QuoteCurrency  string  `yaml:"quote_currency"`
	PricePrecision uint8   `yaml:"price_precision"`
	SizePrecision  uint8   `yaml:"size_precision"`
	PriceIncrement string  `yaml:"price_increment"`
	SizeIncrement  string  `yaml:"size_increment"`
	LotSize        string  `yaml:"lot_size"`
	Multiplier     string  `yaml:"multiplier"`
	MarginInit     float64 `yaml:"margin_init"`
	MarginMaint    float64 `yaml:"margin_maint"`
	MakerFee       float64 `yaml:"maker_fee"`
	TakerFee       float64 `yaml:"taker_fee"`
}

// BacktestConfig controls a backtest run.
type BacktestConfig struct {
	RunID    string `yaml:"run_id"`
	TraderID string `yaml:"trader_id"`
	Start    string `yaml:"start"` // RFC 3339
	End      string `yaml:"end"`
	BarSpec  string `yaml:"bar_spec"`
	Strategy string `yaml:"strategy"`
	// Strategy parameters, passed through untyped.
	Params map[string]string `yaml:"params"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by
	// the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
