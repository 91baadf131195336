package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records counters for the ledger/settlement engine.
type SettlementMetrics struct {
	allocations       *prometheus.CounterVec
	allocatedAmount   *prometheus.CounterVec
	unallocatedAmount prometheus.Counter
	reconcileDrift    prometheus.Counter
	staleBalanceHits  prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_allocations_total",
		Help: "Payment allocation rows written, by kind.",
	}, []string{"kind"})
	allocatedAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_allocated_amount_total",
		Help: "Monetary amount allocated to transactions and expenses.",
	}, []string{"kind"})
	unallocatedAmount := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_unallocated_amount_total",
		Help: "Monetary amount left as prepayment after allocation.",
	})
	reconcileDrift := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_reconcile_corrections_total",
		Help: "Cached balances corrected during reconciliation.",
	})
	staleBalanceHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_stale_balance_total",
		Help: "Optimistic balance writes rejected for a stale version.",
	})
	reg.MustRegister(allocations, allocatedAmount, unallocatedAmount, reconcileDrift, staleBalanceHits)
	return &SettlementMetrics{
		allocations:       allocations,
		allocatedAmount:   allocatedAmount,
		unallocatedAmount: unallocatedAmount,
		reconcileDrift:    reconcileDrift,
		staleBalanceHits:  staleBalanceHits,
	}
}

// IncAllocation counts one allocation row of the given kind.
func (m *SettlementMetrics) IncAllocation(kind string) {
	if m == nil || m.allocations == nil {
		return
	}
	m.allocations.WithLabelValues(normalizeLabel(kind)).Inc()
}

// AddAllocatedAmount accumulates the allocated monetary amount.
func (m *SettlementMetrics) AddAllocatedAmount(kind string, amount float64) {
	if m == nil || m.allocatedAmount == nil {
		return
	}
	m.allocatedAmount.WithLabelValues(normalizeLabel(kind)).Add(amount)
}

// AddUnallocatedAmount accumulates the prepayment remainder.
func (m *SettlementMetrics) AddUnallocatedAmount(amount float64) {
	if m == nil || m.unallocatedAmount == nil {
		return
	}
	m.unallocatedAmount.Add(amount)
}

// IncReconcileCorrection counts a cached balance corrected by reconciliation.
func (m *SettlementMetrics) IncReconcileCorrection() {
	if m == nil || m.reconcileDrift == nil {
		return
	}
	m.reconcileDrift.Inc()
}

// IncStaleBalance counts an optimistic write rejected for version mismatch.
func (m *SettlementMetrics) IncStaleBalance() {
	if m == nil || m.staleBalanceHits == nil {
		return
	}
	m.staleBalanceHits.Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return strings.ReplaceAll(value, " ", "_")
}
