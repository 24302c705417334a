package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for marketsync.
type Config struct {
	Storage Storage `yaml:"storage"`
	EODHD   EODHD   `yaml:"eodhd"`
	Sync    Sync    `yaml:"sync"`
	Logging Logging `yaml:"logging"`
}

// Storage holds the on-disk layout: one directory per record kind, the audit
// log directory, and the run-history database.
type Storage struct {
	BarsDir      string `yaml:"bars_dir"`
	SplitsDir    string `yaml:"splits_dir"`
	DividendsDir string `yaml:"dividends_dir"`
	LogDir       string `yaml:"log_dir"`
	RunsDBPath   string `yaml:"runs_db_path"`
}

// EODHD holds credentials and endpoint for the EODHD API. Single-source
// policy: this is the only provider; there is no fallback.
type EODHD struct {
	APIToken string `yaml:"api_token"`
	BaseURL  string `yaml:"base_url"`
	Exchange string `yaml:"exchange"`
}

// Sync holds parameters for the synchronization engine.
type Sync struct {
	MaxWorkers     int    `yaml:"max_workers"`
	MaxRetries     int    `yaml:"max_retries"`
	RetryDelaySec  int    `yaml:"retry_delay_seconds"`
	RequestTimeout int    `yaml:"request_timeout_seconds"`
	RateLimit      int    `yaml:"rate_limit_per_minute"` // 0 disables throttling
	TickersFile    string `yaml:"tickers_file"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RetryDelay returns the base delay between retry attempts.
func (s Sync) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelaySec) * time.Second
}

// Timeout returns the per-request timeout.
func (s Sync) Timeout() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, applies
// environment variable overrides and defaults, and validates the result.
// A missing file is not an error: the configuration can be assembled
// entirely from environment variables and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if uerr := yaml.Unmarshal(data, cfg); uerr != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, uerr)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if cfg.EODHD.APIToken == "" {
		return nil, fmt.Errorf("eodhd api token missing: set eodhd.api_token in %s or the EODHD_API_TOKEN environment variable", path)
	}

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EODHD_API_TOKEN"); v != "" {
		cfg.EODHD.APIToken = v
	}
	// Legacy name used by older deployments.
	if v := os.Getenv("EODHD_API_KEY"); v != "" && cfg.EODHD.APIToken == "" {
		cfg.EODHD.APIToken = v
	}

	if v := os.Getenv("EODHD_BASE_URL"); v != "" {
		cfg.EODHD.BaseURL = v
	}

	if v := os.Getenv("MARKETSYNC_DATA_DIR"); v != "" {
		cfg.Storage.BarsDir = v
	}

	if v := os.Getenv("MARKETSYNC_TICKERS_FILE"); v != "" {
		cfg.Sync.TickersFile = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// applyDefaults fills in zero-valued fields with the standard defaults.
func applyDefaults(cfg *Config) {
	if cfg.Storage.BarsDir == "" {
		cfg.Storage.BarsDir = "database/raw_data"
	}
	if cfg.Storage.SplitsDir == "" {
		cfg.Storage.SplitsDir = "database/split"
	}
	if cfg.Storage.DividendsDir == "" {
		cfg.Storage.DividendsDir = "database/dividend"
	}
	if cfg.Storage.LogDir == "" {
		cfg.Storage.LogDir = "logs"
	}
	if cfg.Storage.RunsDBPath == "" {
		cfg.Storage.RunsDBPath = "database/runs.db"
	}

	if cfg.EODHD.BaseURL == "" {
		cfg.EODHD.BaseURL = "https://eodhd.com/api"
	}
	if cfg.EODHD.Exchange == "" {
		cfg.EODHD.Exchange = "US"
	}

	if cfg.Sync.MaxWorkers == 0 {
		cfg.Sync.MaxWorkers = 30
	}
	if cfg.Sync.MaxRetries == 0 {
		cfg.Sync.MaxRetries = 3
	}
	if cfg.Sync.RetryDelaySec == 0 {
		cfg.Sync.RetryDelaySec = 2
	}
	if cfg.Sync.RequestTimeout == 0 {
		cfg.Sync.RequestTimeout = 10
	}
	if cfg.Sync.TickersFile == "" {
		cfg.Sync.TickersFile = "tickers.txt"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
