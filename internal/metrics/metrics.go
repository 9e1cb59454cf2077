// Package metrics метрики портала в формате Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/hotspot-portal/internal/checkout"
)

// Metrics набор коллекторов портала.
type Metrics struct {
	checkoutTransitions *prometheus.CounterVec
	checkoutPolls       prometheus.Histogram
	redemptions         *prometheus.CounterVec
	activeSessions      prometheus.Gauge
}

// New создаёт коллекторы и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checkoutTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "checkout",
			Name:      "transitions_total",
			Help:      "Checkout state machine transitions by target state.",
		}, []string{"state"}),
		checkoutPolls: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "checkout",
			Name:      "polls_to_terminal",
			Help:      "Status polls a payment needed to reach a terminal state.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "redemptions_total",
			Help:      "Voucher, points, free trial and reconnect actions by outcome.",
		}, []string{"kind", "outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "portal",
			Name:      "active_sessions",
			Help:      "Portal sessions currently held in memory.",
		}),
	}
	reg.MustRegister(m.checkoutTransitions, m.checkoutPolls, m.redemptions, m.activeSessions)
	return m
}

// Observe учитывает переход автомата оплаты.
func (m *Metrics) Observe(s checkout.Snapshot) {
	m.checkoutTransitions.WithLabelValues(string(s.State)).Inc()
	if s.State.IsTerminal() && s.PaymentID != "" {
		m.checkoutPolls.Observe(float64(s.Polls))
	}
}

// ObserveRedemption учитывает разовое действие.
func (m *Metrics) ObserveRedemption(kind, outcome string) {
	m.redemptions.WithLabelValues(kind, outcome).Inc()
}

// SetActiveSessions выставляет число сессий.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}
