package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveMutation("record_expense", ResultOK, 10*time.Millisecond)
	m.ObserveMutation("record_expense", ResultOK, 20*time.Millisecond)
	m.ObserveMutation("record_expense", ResultRejected, time.Millisecond)
	m.LockTimeout()
	m.TxConflict()
	m.TxConflict()
	m.Discrepancies(3)
	m.Discrepancies(0)

	if got := testutil.ToFloat64(m.mutations.WithLabelValues("record_expense", ResultOK)); got != 2 {
		t.Errorf("ok mutations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.mutations.WithLabelValues("record_expense", ResultRejected)); got != 1 {
		t.Errorf("rejected mutations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.lockTimeouts); got != 1 {
		t.Errorf("lock timeouts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.txConflicts); got != 2 {
		t.Errorf("tx conflicts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.discrepancies); got != 3 {
		t.Errorf("discrepancies = %v, want 3", got)
	}
	if got := testutil.CollectAndCount(m.duration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveMutation("delete_expense", ResultError, time.Second)
	m.LockTimeout()
	m.TxConflict()
	m.Discrepancies(1)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.LockTimeout()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "splitledger_lock_timeouts_total 1") {
		t.Errorf("metrics output missing lock timeout counter:\n%s", rec.Body.String())
	}
}
