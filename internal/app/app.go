// Package app wires the ledger service and its collaborators from a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/mmynk/splitledger/internal/cache"
	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/memory"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

// App bundles the ledger and everything it was built from.
type App struct {
	Ledger   *ledger.Service
	Store    storage.Store
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	redis *redis.Client
}

// New builds the store, optional Redis cache and metrics registry described
// by cfg and returns a ready ledger service. Close releases them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := openStore(cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("Storage initialized", "driver", cfg.Database.Driver, "database", cfg.Database.Path)

	a := &App{
		Store:    store,
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(collectors.NewGoCollector())
	a.Metrics = metrics.New(a.Registry)

	opts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithMetrics(a.Metrics),
		ledger.WithLockTimeout(cfg.Ledger.LockTimeout),
		ledger.WithMaxRetries(cfg.Ledger.MaxRetries),
		ledger.WithAllowOverpayment(cfg.Ledger.AllowOverpayment),
		ledger.WithReconcileEpsilon(cfg.Ledger.ReconcileEpsilon),
	}

	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		opts = append(opts, ledger.WithCache(cache.NewRedis(a.redis), cfg.Redis.TTL))
		logger.Info("Balance cache enabled", "redis", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
	}

	a.Ledger = ledger.New(store, opts...)
	return a, nil
}

func openStore(cfg config.DatabaseConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		store, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// Close releases the store and the Redis client.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
