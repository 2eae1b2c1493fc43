package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DomainMetrics counts order transitions, wallet movements and outbox
// deliveries.
type DomainMetrics struct {
	orders       *prometheus.CounterVec
	walletMoves  *prometheus.CounterVec
	walletAmount *prometheus.CounterVec
	outbox       *prometheus.CounterVec
}

// NewDomainMetrics registers the domain counters. A nil registerer yields a
// no-op recorder.
func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "transitions_total",
		Help:      "Orders entering a status, by payment method.",
	}, []string{"status", "payment_method"})
	walletMoves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "wallet",
		Name:      "transactions_total",
		Help:      "Recorded wallet transactions.",
	}, []string{"type", "transaction_type"})
	walletAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "wallet",
		Name:      "amount_cents_total",
		Help:      "Money moved through wallets in minor units.",
	}, []string{"type", "transaction_type"})
	outbox := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox publish attempts by event type and outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(orders, walletMoves, walletAmount, outbox)
	return &DomainMetrics{
		orders:       orders,
		walletMoves:  walletMoves,
		walletAmount: walletAmount,
		outbox:       outbox,
	}
}

// OrderTransition records an order reaching status.
func (m *DomainMetrics) OrderTransition(status, paymentMethod string) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.WithLabelValues(normalizeLabel(status), normalizeLabel(paymentMethod)).Inc()
}

// WalletMovement records one ledger row.
func (m *DomainMetrics) WalletMovement(entryType, transactionType string, amountCents int64) {
	if m == nil || m.walletMoves == nil {
		return
	}
	labels := []string{normalizeLabel(entryType), normalizeLabel(transactionType)}
	m.walletMoves.WithLabelValues(labels...).Inc()
	if amountCents > 0 {
		m.walletAmount.WithLabelValues(labels...).Add(float64(amountCents))
	}
}

// OutboxDelivery records the result of publishing one outbox row.
func (m *DomainMetrics) OutboxDelivery(eventType, outcome string) {
	if m == nil || m.outbox == nil {
		return
	}
	m.outbox.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
