// Package metrics exposes Prometheus instruments for the payment flow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the service's Prometheus collectors. A fresh instance per
// registry keeps tests independent.
type Metrics struct {
	PaymentsCreated *prometheus.CounterVec
	PaymentsVerifed *prometheus.CounterVec
	WebhookEvents   *prometheus.CounterVec
	GatewayLatency  *prometheus.HistogramVec
}

// New registers the collectors on reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PaymentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_created_total",
			Help: "Payment creation attempts by outcome.",
		}, []string{"outcome"}),
		PaymentsVerifed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_verified_total",
			Help: "Payment verification calls by mapped status.",
		}, []string{"status"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Inbound webhook deliveries by result.",
		}, []string{"result"}),
		GatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_call_duration_seconds",
			Help:    "Latency of gateway round trips.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(m.PaymentsCreated, m.PaymentsVerifed, m.WebhookEvents, m.GatewayLatency)
	return m
}

// ObserveGateway records one gateway round trip.
func (m *Metrics) ObserveGateway(op string, start time.Time) {
	m.GatewayLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
