package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	RefundKindTicket  = "ticket"
	RefundKindOrder   = "order"
	RefundKindCascade = "event_cascade"

	RefundOutcomeSucceeded = "succeeded"
	RefundOutcomeFailed    = "failed"
	// RefundOutcomeUnreconciled means the processor refunded but local state was not updated.
	RefundOutcomeUnreconciled = "unreconciled"
)

// RefundMetrics tracks processor refunds issued by the engine.
type RefundMetrics struct {
	refunds  *prometheus.CounterVec
	amount   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewRefundMetrics(reg prometheus.Registerer) *RefundMetrics {
	if reg == nil {
		return &RefundMetrics{}
	}
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_total",
		Help: "Refund attempts by kind and outcome.",
	}, []string{"kind", "outcome"})
	amount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_amount_minor_total",
		Help: "Refunded amount in processor minor units.",
	}, []string{"currency"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "refund_processor_duration_seconds",
		Help:    "Latency of payment processor refund calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	reg.MustRegister(refunds, amount, duration)
	return &RefundMetrics{refunds: refunds, amount: amount, duration: duration}
}

func (m *RefundMetrics) Observe(kind, outcome string) {
	if m == nil || m.refunds == nil {
		return
	}
	m.refunds.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

func (m *RefundMetrics) AddAmount(currency string, minor int64) {
	if m == nil || m.amount == nil || minor <= 0 {
		return
	}
	m.amount.WithLabelValues(normalizeLabel(currency)).Add(float64(minor))
}

func (m *RefundMetrics) ObserveProcessorLatency(kind string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(kind)).Observe(d.Seconds())
}
