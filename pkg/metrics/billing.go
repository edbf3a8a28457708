package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics records engine operation outcomes and payment volumes.
type BillingMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	payments *prometheus.CounterVec
}

// NewBillingMetrics registers the engine metrics on the provided registerer.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_operation_duration_seconds",
		Help:    "Duration of billing engine operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_operation_success",
		Help: "Successful billing engine operations.",
	}, []string{"operation"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_operation_failure",
		Help: "Failed billing engine operations.",
	}, []string{"operation", "code"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_payments_total",
		Help: "Settled payments by method.",
	}, []string{"method"})
	reg.MustRegister(duration, success, failure, payments)
	return &BillingMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		payments: payments,
	}
}

// ObserveDuration records how long the named operation ran.
func (b *BillingMetrics) ObserveDuration(operation string, duration time.Duration) {
	if b == nil || b.duration == nil {
		return
	}
	b.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named operation.
func (b *BillingMetrics) IncSuccess(operation string) {
	if b == nil || b.success == nil {
		return
	}
	b.success.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncFailure increments the failure counter for the named operation.
func (b *BillingMetrics) IncFailure(operation, code string) {
	if b == nil || b.failure == nil {
		return
	}
	b.failure.WithLabelValues(normalizeLabel(operation), normalizeLabel(code)).Inc()
}

// IncPayment counts one settled payment for a method.
func (b *BillingMetrics) IncPayment(method string) {
	if b == nil || b.payments == nil {
		return
	}
	b.payments.WithLabelValues(normalizeLabel(method)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
