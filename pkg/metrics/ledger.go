package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records outcomes of balance-affecting operations.
type LedgerMetrics struct {
	operations         *prometheus.CounterVec
	failures           *prometheus.CounterVec
	settlementDuration *prometheus.HistogramVec
	orphaned           prometheus.Counter
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Completed ledger operations by kind.",
	}, []string{"op"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operation_failures_total",
		Help: "Failed ledger operations by kind and error code.",
	}, []string{"op", "code"})
	settlementDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_gateway_duration_seconds",
		Help:    "Duration of settlement gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"call"})
	orphaned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_orphaned_settlements_total",
		Help: "External transfers that settled without a matching ledger credit.",
	})
	reg.MustRegister(operations, failures, settlementDuration, orphaned)
	return &LedgerMetrics{
		operations:         operations,
		failures:           failures,
		settlementDuration: settlementDuration,
		orphaned:           orphaned,
	}
}

// IncOperation increments the success counter for the named operation.
func (m *LedgerMetrics) IncOperation(op string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncFailure increments the failure counter for the named operation.
func (m *LedgerMetrics) IncFailure(op, code string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(op), normalizeLabel(code)).Inc()
}

// ObserveSettlement records the duration of a gateway call.
func (m *LedgerMetrics) ObserveSettlement(call string, duration time.Duration) {
	if m == nil || m.settlementDuration == nil {
		return
	}
	m.settlementDuration.WithLabelValues(normalizeLabel(call)).Observe(duration.Seconds())
}

// IncOrphanedSettlement counts a settled transfer that could not be credited.
func (m *LedgerMetrics) IncOrphanedSettlement() {
	if m == nil || m.orphaned == nil {
		return
	}
	m.orphaned.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
