package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	CompositeOps       *prometheus.CounterVec
	CompositeLatency   *prometheus.HistogramVec
	Compensations      *prometheus.CounterVec
	CompensationErrors *prometheus.CounterVec
	VerifierSamples    *prometheus.CounterVec
	Errors             *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			CompositeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "composite_operations_total",
				Help:      "Total composite repository operations by name and outcome.",
			}, []string{"op", "outcome"}),
			CompositeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "composite_operation_duration_seconds",
				Help:      "Latency distribution for composite repository operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compensations_total",
				Help:      "Total compensating actions executed during rollbacks.",
			}, []string{"op"}),
			CompensationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compensation_errors_total",
				Help:      "Compensating actions that themselves failed.",
			}, []string{"op"}),
			VerifierSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verifier_samples_total",
				Help:      "Shadow verification samples by service and result.",
			}, []string{"service", "result"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.CompositeOps,
			metricsInstance.CompositeLatency,
			metricsInstance.Compensations,
			metricsInstance.CompensationErrors,
			metricsInstance.VerifierSamples,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}

// ObserveOp records one composite operation. Nil receivers no-op so repository
// tests run without a registry.
func (m *Metrics) ObserveOp(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.CompositeOps.WithLabelValues(op, outcome).Inc()
	m.CompositeLatency.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveCompensation records one executed compensating action.
func (m *Metrics) ObserveCompensation(op string, failed bool) {
	if m == nil {
		return
	}
	m.Compensations.WithLabelValues(op).Inc()
	if failed {
		m.CompensationErrors.WithLabelValues(op).Inc()
	}
}

// ObserveVerifierSample records one shadow comparison outcome.
func (m *Metrics) ObserveVerifierSample(service string, matched bool) {
	if m == nil {
		return
	}
	result := "matched"
	if !matched {
		result = "mismatched"
	}
	m.VerifierSamples.WithLabelValues(service, result).Inc()
}

// IncError bumps the per-component error counter.
func (m *Metrics) IncError(component string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(component).Inc()
}
