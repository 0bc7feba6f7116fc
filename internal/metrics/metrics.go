// Package metrics exposes Prometheus instrumentation for the ledger.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "splitledger"

// Result label values.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics holds the ledger's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	mutations     *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	lockTimeouts  prometheus.Counter
	txConflicts   prometheus.Counter
	discrepancies prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Ledger mutations by operation and result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mutation_duration_seconds",
			Help:      "Time spent in ledger mutations, including lock wait and retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		lockTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_timeouts_total",
			Help:      "Group lock acquisitions that timed out.",
		}),
		txConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_conflicts_total",
			Help:      "Write transactions rejected by the datastore and retried.",
		}),
		discrepancies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_discrepancies_total",
			Help:      "Balance discrepancies found by reconciliation.",
		}),
	}
	reg.MustRegister(m.mutations, m.duration, m.lockTimeouts, m.txConflicts, m.discrepancies)
	return m
}

// ObserveMutation records one finished mutation.
func (m *Metrics) ObserveMutation(op, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) LockTimeout() {
	if m != nil {
		m.lockTimeouts.Inc()
	}
}

func (m *Metrics) TxConflict() {
	if m != nil {
		m.txConflicts.Inc()
	}
}

// Discrepancies adds n reconciliation findings.
func (m *Metrics) Discrepancies(n int) {
	if m != nil && n > 0 {
		m.discrepancies.Add(float64(n))
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
