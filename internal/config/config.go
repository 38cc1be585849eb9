package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the coinsignal service.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Server   Server         `yaml:"server"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Logging  Logging        `yaml:"logging"`
	Backtest BacktestConfig `yaml:"backtest"`
	Gather   GatherConfig   `yaml:"gather"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Alpaca holds credentials, endpoint and pacing for the Alpaca market-data
// API.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	DataURL         string `yaml:"data_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	MaxAttempts     int    `yaml:"max_attempts"`
	BreakerFailures int    `yaml:"breaker_failures"`
	// RetryDelay is the base backoff between attempts, e.g. "500ms".
	RetryDelay time.Duration `yaml:"retry_delay"`
	// BreakerTimeout is how long an open breaker waits before probing, e.g. "60s".
	BreakerTimeout time.Duration `yaml:"breaker_timeout"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BacktestConfig tunes the backtest engine.
type BacktestConfig struct {
	InitialCapital float64 `yaml:"initial_capital"`
	MinCandles     int     `yaml:"min_candles"`
	TradeSample    int     `yaml:"trade_sample"`
	MaxWorkers     int     `yaml:"max_workers"`
	// ArchiveFirst serves candles from the Parquet archive and only falls
	// back to Alpaca for ranges the archive does not cover.
	ArchiveFirst bool `yaml:"archive_first"`
}

// GatherConfig controls archive filling.
type GatherConfig struct {
	Symbols    []string `yaml:"symbols"`
	Timeframe  string   `yaml:"timeframe"`
	StartDate  string   `yaml:"start_date"`
	MaxWorkers int      `yaml:"max_workers"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a Config populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides and fills defaults.
// An empty path falls back to $COINSIGNAL_CONFIG, and to defaults plus
// environment when neither is set.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("COINSIGNAL_CONFIG")
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
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

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// Standard Alpaca env vars take precedence; they are the names the SDK reads.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(cfg.Storage.DataDir, "coinsignal.db")
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Alpaca.RateLimitPerMin == 0 {
		cfg.Alpaca.RateLimitPerMin = 200
	}
	if cfg.Alpaca.MaxAttempts == 0 {
		cfg.Alpaca.MaxAttempts = 3
	}
	if cfg.Alpaca.BreakerFailures == 0 {
		cfg.Alpaca.BreakerFailures = 5
	}
	if cfg.Alpaca.RetryDelay == 0 {
		cfg.Alpaca.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Alpaca.BreakerTimeout == 0 {
		cfg.Alpaca.BreakerTimeout = 60 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Backtest.InitialCapital == 0 {
		cfg.Backtest.InitialCapital = 10000
	}
	if cfg.Backtest.MinCandles == 0 {
		cfg.Backtest.MinCandles = 30
	}
	if cfg.Backtest.TradeSample == 0 {
		cfg.Backtest.TradeSample = 20
	}
	if cfg.Backtest.MaxWorkers == 0 {
		cfg.Backtest.MaxWorkers = 4
	}
	if cfg.Gather.Timeframe == "" {
		cfg.Gather.Timeframe = "1d"
	}
	if cfg.Gather.MaxWorkers == 0 {
		cfg.Gather.MaxWorkers = 2
	}
}
