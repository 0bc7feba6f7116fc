// Package config loads splitledger settings from an optional YAML file,
// a .env file and SPLITLEDGER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// EnvPrefix is prepended to every environment override, e.g.
// SPLITLEDGER_DATABASE_PATH.
const EnvPrefix = "SPLITLEDGER"

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type LedgerConfig struct {
	LockTimeout      time.Duration `mapstructure:"lock_timeout"`
	MaxRetries       uint          `mapstructure:"max_retries"`
	AllowOverpayment bool          `mapstructure:"allow_overpayment"`
	ReconcileEpsilon int64         `mapstructure:"reconcile_epsilon"`
}

// RedisConfig configures the balance cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

var defaults = map[string]any{
	"database.driver":          DriverSQLite,
	"database.path":            "./data/ledger.db",
	"log.level":                "info",
	"ledger.lock_timeout":      "5s",
	"ledger.max_retries":       5,
	"ledger.allow_overpayment": false,
	"ledger.reconcile_epsilon": 0,
	"redis.addr":               "",
	"redis.password":           "",
	"redis.db":                 0,
	"redis.ttl":                "30s",
	"metrics.addr":             ":9090",
}

// Load reads configuration from path. An empty path looks for an optional
// splitledger.yaml in the working directory; a named file must exist.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path == "" {
		v.SetConfigName("splitledger")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks value ranges that viper cannot express.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("config: database.path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	if c.Ledger.LockTimeout <= 0 {
		return fmt.Errorf("config: ledger.lock_timeout must be positive, got %s", c.Ledger.LockTimeout)
	}
	if c.Ledger.MaxRetries < 1 {
		return errors.New("config: ledger.max_retries must be at least 1")
	}
	if c.Ledger.ReconcileEpsilon < 0 {
		return fmt.Errorf("config: ledger.reconcile_epsilon must not be negative, got %d", c.Ledger.ReconcileEpsilon)
	}
	if c.Redis.Addr != "" && c.Redis.TTL <= 0 {
		return fmt.Errorf("config: redis.ttl must be positive, got %s", c.Redis.TTL)
	}
	return nil
}
