package config

import (
	"os"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "mktcal-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}
	return tmpFile.Name()
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_DIR", "SQLITE_PATH",
		"ALPACA_API_KEY", "ALPACA_API_SECRET", "ALPACA_BASE_URL",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
		"REFRESH_HOUR_UTC", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadFull(t *testing.T) {
	clearEnv(t)

	path := writeTempConfig(t, `
storage:
  data_dir: "/tmp/mktcal/data"
  sqlite_path: "/tmp/mktcal/market_hours.db"
server:
  host: "127.0.0.1"
  port: 8090
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  base_url: "https://paper-api.alpaca.markets"
refresh:
  enabled: true
  hour_utc: 6
  timeout_seconds: 30
  run_on_start: true
  source: "alpaca"
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/mktcal/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/mktcal/data")
	}
	if cfg.Storage.SQLitePath != "/tmp/mktcal/market_hours.db" {
		t.Errorf("Storage.SQLitePath = %q", cfg.Storage.SQLitePath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 8090 {
		t.Errorf("Server = %q:%d, want 127.0.0.1:8090", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Alpaca.APIKey != "test-key" || cfg.Alpaca.APISecret != "test-secret" {
		t.Errorf("Alpaca credentials not loaded: %+v", cfg.Alpaca)
	}
	if !cfg.RefreshEnabled() {
		t.Error("RefreshEnabled() = false, want true")
	}
	if cfg.Refresh.HourUTC != 6 {
		t.Errorf("Refresh.HourUTC = %d, want 6", cfg.Refresh.HourUTC)
	}
	if !cfg.Refresh.RunOnStart {
		t.Error("Refresh.RunOnStart = false, want true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	path := writeTempConfig(t, `
refresh:
  source: "rules"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.SQLitePath != "data/market_hours.db" {
		t.Errorf("default SQLitePath = %q", cfg.Storage.SQLitePath)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Refresh.TimeoutSeconds != 30 {
		t.Errorf("default Refresh.TimeoutSeconds = %d, want 30", cfg.Refresh.TimeoutSeconds)
	}
	if !cfg.RefreshEnabled() {
		t.Error("refresh should default to enabled")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default logging = %q/%q", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)

	path := writeTempConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("REFRESH_HOUR_UTC", "14")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Refresh.HourUTC != 14 {
		t.Errorf("Refresh.HourUTC = %d, want 14 (env override)", cfg.Refresh.HourUTC)
	}
}

func TestLoadValidation(t *testing.T) {
	clearEnv(t)

	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "hour out of range",
			yaml:    "refresh:\n  hour_utc: 24\n  source: rules\n",
			wantErr: "hour_utc",
		},
		{
			name:    "negative timeout",
			yaml:    "refresh:\n  timeout_seconds: -5\n  source: rules\n",
			wantErr: "timeout_seconds",
		},
		{
			name:    "unknown source",
			yaml:    "refresh:\n  source: nyse-scrape\n",
			wantErr: "refresh.source",
		},
		{
			name:    "alpaca source without key",
			yaml:    "refresh:\n  source: alpaca\n",
			wantErr: "api_key",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := writeTempConfig(t, c.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), c.wantErr) {
				t.Errorf("error %q does not mention %q", err, c.wantErr)
			}
		})
	}
}
