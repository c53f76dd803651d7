// Package config loads the service configuration from a YAML file and
// applies environment variable overrides. The rest of the codebase only
// ever sees the parsed Config struct; nothing below main reads env vars
// directly.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the market hours service.
type Config struct {
	Storage Storage       `yaml:"storage"`
	Server  Server        `yaml:"server"`
	Alpaca  Alpaca        `yaml:"alpaca"`
	Refresh RefreshConfig `yaml:"refresh"`
	Logging Logging       `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Alpaca holds credentials and endpoints for the Alpaca trading API, used
// as the authoritative calendar source.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// RefreshConfig controls the daily schedule-refresh cycle.
type RefreshConfig struct {
	// Enabled gates the background scheduler entirely. When false the
	// service serves whatever calendar is already persisted.
	Enabled *bool `yaml:"enabled"`

	// HourUTC is the hour-of-day (0-23, UTC) at which the daily cycle runs.
	HourUTC int `yaml:"hour_utc"`

	// TimeoutSeconds bounds one acquisition attempt.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// RunOnStart runs one cycle immediately at service startup.
	RunOnStart bool `yaml:"run_on_start"`

	// Source selects the schedule source: "alpaca" (default) or "rules"
	// (derive the schedule locally without any network access).
	Source string `yaml:"source"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into
// a Config struct, applies environment variable overrides, and validates
// the result.
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
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RefreshEnabled resolves the optional enabled flag (default true).
func (c *Config) RefreshEnabled() bool {
	if c.Refresh.Enabled == nil {
		return true
	}
	return *c.Refresh.Enabled
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/market_hours.db"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Refresh.TimeoutSeconds == 0 {
		cfg.Refresh.TimeoutSeconds = 30
	}
	if cfg.Refresh.Source == "" {
		cfg.Refresh.Source = "alpaca"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func (c *Config) validate() error {
	if c.Refresh.HourUTC < 0 || c.Refresh.HourUTC > 23 {
		return fmt.Errorf("refresh.hour_utc must be in [0, 23], got %d", c.Refresh.HourUTC)
	}
	if c.Refresh.TimeoutSeconds <= 0 {
		return fmt.Errorf("refresh.timeout_seconds must be > 0, got %d", c.Refresh.TimeoutSeconds)
	}
	switch c.Refresh.Source {
	case "alpaca", "rules":
	default:
		return fmt.Errorf("refresh.source must be \"alpaca\" or \"rules\", got %q", c.Refresh.Source)
	}
	if c.Refresh.Source == "alpaca" && c.Alpaca.APIKey == "" {
		return fmt.Errorf("alpaca.api_key is required when refresh.source is \"alpaca\"")
	}
	return nil
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

	if v := os.Getenv("REFRESH_HOUR_UTC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Refresh.HourUTC = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Canonical Alpaca SDK env vars, applied last so they win.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
