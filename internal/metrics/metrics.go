// Package metrics holds the Prometheus counters for audit records and their
// delivery. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the façades and log sinks
type Metrics struct {
	AuditRecords    *prometheus.CounterVec
	SinkFailures    *prometheus.CounterVec
	Buffered        prometheus.Counter
	Delivered       prometheus.Counter
	DeliveryRetries prometheus.Counter
	DeadLettered    prometheus.Counter
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuditRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aws_facade_audit_records_total",
			Help: "Audit records produced, by category, method and level",
		}, []string{"category", "method", "level"}),
		SinkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aws_facade_audit_sink_failures_total",
			Help: "Audit records the log sink rejected, by category",
		}, []string{"category"}),
		Buffered: factory.NewCounter(prometheus.CounterOpts{
			Name: "aws_facade_audit_buffered_total",
			Help: "Audit records accepted by the buffered sink",
		}),
		Delivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "aws_facade_audit_delivered_total",
			Help: "Audit records written by the buffered sink's backend",
		}),
		DeliveryRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "aws_facade_audit_delivery_retries_total",
			Help: "Batch write retries in the buffered sink",
		}),
		DeadLettered: factory.NewCounter(prometheus.CounterOpts{
			Name: "aws_facade_audit_dead_lettered_total",
			Help: "Audit records moved to the dead-letter queue",
		}),
	}
}

// ObserveRecord counts one audit record.
func (m *Metrics) ObserveRecord(category, method, level string) {
	if m == nil {
		return
	}
	m.AuditRecords.WithLabelValues(category, method, level).Inc()
}

// ObserveSinkFailure counts one record the sink rejected.
func (m *Metrics) ObserveSinkFailure(category string) {
	if m == nil {
		return
	}
	m.SinkFailures.WithLabelValues(category).Inc()
}

func (m *Metrics) ObserveBuffered() {
	if m == nil {
		return
	}
	m.Buffered.Inc()
}

func (m *Metrics) ObserveDelivered(n int) {
	if m == nil {
		return
	}
	m.Delivered.Add(float64(n))
}

func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.DeliveryRetries.Inc()
}

func (m *Metrics) ObserveDeadLettered(n int) {
	if m == nil {
		return
	}
	m.DeadLettered.Add(float64(n))
}
