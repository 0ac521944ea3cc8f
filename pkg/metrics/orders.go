package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrderMetrics counts order placement outcomes and status transitions.
type OrderMetrics struct {
	placements  *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	placements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "placements_total",
		Help:      "Order placement attempts by outcome.",
	}, []string{"outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "transitions_total",
		Help:      "Committed order status transitions.",
	}, []string{"from", "to"})
	reg.MustRegister(placements, transitions)
	return &OrderMetrics{placements: placements, transitions: transitions}
}

// Placement records outcome: placed, rejected, empty_cart, tx_failed, error.
func (m *OrderMetrics) Placement(outcome string) {
	if m == nil || m.placements == nil {
		return
	}
	m.placements.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *OrderMetrics) Transition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}
