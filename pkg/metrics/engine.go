package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records counters for the transaction engine.
type EngineMetrics struct {
	salesCreated   prometheus.Counter
	salesVoided    prometheus.Counter
	oversellDenied *prometheus.CounterVec
	outboxResult   *prometheus.CounterVec
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	salesCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sales_created_total",
		Help: "Completed sales persisted by the transaction engine.",
	})
	salesVoided := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sales_voided_total",
		Help: "Sales voided and reversed against inventory.",
	})
	oversellDenied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_oversell_denied_total",
		Help: "Mutations rejected because stock would go negative.",
	}, []string{"type"})
	outboxResult := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_total",
		Help: "Outbox publish attempts by result.",
	}, []string{"result"})
	reg.MustRegister(salesCreated, salesVoided, oversellDenied, outboxResult)
	return &EngineMetrics{
		salesCreated:   salesCreated,
		salesVoided:    salesVoided,
		oversellDenied: oversellDenied,
		outboxResult:   outboxResult,
	}
}

// IncSaleCreated counts one committed sale.
func (m *EngineMetrics) IncSaleCreated() {
	if m == nil || m.salesCreated == nil {
		return
	}
	m.salesCreated.Inc()
}

// IncSaleVoided counts one committed void.
func (m *EngineMetrics) IncSaleVoided() {
	if m == nil || m.salesVoided == nil {
		return
	}
	m.salesVoided.Inc()
}

// IncOversellDenied counts one rejected mutation by transaction type.
func (m *EngineMetrics) IncOversellDenied(txnType string) {
	if m == nil || m.oversellDenied == nil {
		return
	}
	if txnType == "" {
		txnType = "unknown"
	}
	m.oversellDenied.WithLabelValues(txnType).Inc()
}

// IncOutboxResult counts one publish attempt outcome ("published"/"failed").
func (m *EngineMetrics) IncOutboxResult(result string) {
	if m == nil || m.outboxResult == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.outboxResult.WithLabelValues(result).Inc()
}
