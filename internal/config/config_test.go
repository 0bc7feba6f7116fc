package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// inTempDir runs the test from an empty directory so no stray
// splitledger.yaml or .env is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.Path != "./data/ledger.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q, want info", cfg.Log.Level)
	}
	want := LedgerConfig{LockTimeout: 5 * time.Second, MaxRetries: 5}
	if cfg.Ledger != want {
		t.Errorf("ledger = %+v, want %+v", cfg.Ledger, want)
	}
	if cfg.Redis.Addr != "" || cfg.Redis.TTL != 30*time.Second {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Metrics.Addr != ":9090" {
		t.Errorf("metrics addr = %q", cfg.Metrics.Addr)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "ledger.yaml")
	writeFile(t, path, `
database:
  driver: memory
ledger:
  lock_timeout: 250ms
  max_retries: 2
  allow_overpayment: true
redis:
  addr: localhost:6379
  ttl: 1m
`)
	t.Setenv("SPLITLEDGER_LEDGER_MAX_RETRIES", "7")
	t.Setenv("SPLITLEDGER_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Errorf("driver = %q, want memory", cfg.Database.Driver)
	}
	if cfg.Ledger.LockTimeout != 250*time.Millisecond {
		t.Errorf("lock timeout = %s, want 250ms", cfg.Ledger.LockTimeout)
	}
	if cfg.Ledger.MaxRetries != 7 {
		t.Errorf("max retries = %d, want env override 7", cfg.Ledger.MaxRetries)
	}
	if !cfg.Ledger.AllowOverpayment {
		t.Error("allow_overpayment not read from file")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.TTL != time.Minute {
		t.Errorf("redis = %+v", cfg.Redis)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := inTempDir(t)
	writeFile(t, filepath.Join(dir, ".env"), "SPLITLEDGER_METRICS_ADDR=127.0.0.1:9191\n")
	t.Cleanup(func() { os.Unsetenv("SPLITLEDGER_METRICS_ADDR") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Metrics.Addr != "127.0.0.1:9191" {
		t.Errorf("metrics addr = %q, want value from .env", cfg.Metrics.Addr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := inTempDir(t)
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Driver: DriverSQLite, Path: "ledger.db"},
			Ledger:   LedgerConfig{LockTimeout: time.Second, MaxRetries: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"memory driver needs no path", func(c *Config) { c.Database = DatabaseConfig{Driver: DriverMemory} }, ""},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"zero lock timeout", func(c *Config) { c.Ledger.LockTimeout = 0 }, "lock_timeout"},
		{"zero retries", func(c *Config) { c.Ledger.MaxRetries = 0 }, "max_retries"},
		{"negative epsilon", func(c *Config) { c.Ledger.ReconcileEpsilon = -1 }, "reconcile_epsilon"},
		{"redis without ttl", func(c *Config) { c.Redis.Addr = "localhost:6379" }, "redis.ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
