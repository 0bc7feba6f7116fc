package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

func testConfig(driver, path string) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Driver: driver, Path: path},
		Ledger:   config.LedgerConfig{LockTimeout: time.Second, MaxRetries: 3},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(t *testing.T) *config.Config
	}{
		{"memory", func(t *testing.T) *config.Config { return testConfig(config.DriverMemory, "") }},
		{"sqlite", func(t *testing.T) *config.Config {
			return testConfig(config.DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			a, err := New(ctx, tt.cfg(t), quietLogger())
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			t.Cleanup(func() { a.Close() })

			g, err := a.Ledger.CreateGroup(ctx, "Trip", "USD", []string{"A", "B"})
			if err != nil {
				t.Fatalf("CreateGroup failed: %v", err)
			}
			if _, err := a.Ledger.RecordExpense(ctx, g.ID, "A", money.New(1000, "USD"), models.EqualSplit("A", "B")); err != nil {
				t.Fatalf("RecordExpense failed: %v", err)
			}
			net, err := a.Ledger.GetUserNetPosition(ctx, g.ID, "A")
			if err != nil {
				t.Fatalf("GetUserNetPosition failed: %v", err)
			}
			if net.Amount != 500 {
				t.Errorf("net(A) = %d, want 500", net.Amount)
			}

			families, err := a.Registry.Gather()
			if err != nil {
				t.Fatalf("Gather failed: %v", err)
			}
			found := false
			for _, mf := range families {
				if mf.GetName() == "splitledger_mutations_total" {
					found = true
				}
			}
			if !found {
				t.Error("mutation metrics not registered")
			}
		})
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), testConfig("mysql", ""), quietLogger()); err == nil {
		t.Error("expected an error for an unknown driver")
	}
}

func TestNewFailsWithoutRedis(t *testing.T) {
	cfg := testConfig(config.DriverMemory, "")
	// Nothing listens on the discard port.
	cfg.Redis = config.RedisConfig{Addr: "127.0.0.1:9", TTL: time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := New(ctx, cfg, quietLogger()); err == nil {
		t.Error("expected an error when redis is unreachable")
	}
}
