package ledger

import (
	"log/slog"
	"time"

	"github.com/mmynk/splitledger/internal/cache"
	"github.com/mmynk/splitledger/internal/metrics"
)

// Defaults used by New.
const (
	DefaultLockTimeout = 5 * time.Second
	DefaultMaxRetries  = 5
	DefaultCacheTTL    = 30 * time.Second
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics records mutation metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCache enables read-through caching of group balances.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithLockTimeout bounds how long a mutation waits for its group's lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) { s.lockTimeout = d }
}

// WithMaxRetries sets how many times a write transaction is attempted
// when the datastore reports a conflict.
func WithMaxRetries(n uint) Option {
	return func(s *Service) { s.maxRetries = n }
}

// WithAllowOverpayment lets a completed settlement exceed what the payer
// owes, flipping the debt to the other direction.
func WithAllowOverpayment(allow bool) Option {
	return func(s *Service) { s.allowOverpayment = allow }
}

// WithReconcileEpsilon sets the largest per-pair difference, in minor units,
// that Reconcile tolerates.
func WithReconcileEpsilon(epsilon int64) Option {
	return func(s *Service) { s.epsilon = epsilon }
}

// WithClock overrides the time source for stored timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}
