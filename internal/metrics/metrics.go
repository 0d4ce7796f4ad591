// Package metrics provides Prometheus collectors for change-set saves.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "changeset"

var (
	// BatchesTotal counts finished batches by outcome.
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total save batches by outcome",
		},
		[]string{"outcome"}, // outcome: ok, partial, failed
	)

	// BatchDuration tracks the time from Save to terminal delivery.
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Save batch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// OperationsTotal counts dispatched store operations.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total store operations dispatched",
		},
		[]string{"operation", "status"}, // operation: insert/update/delete, status: ok/error
	)

	// OperationLatency tracks individual store call latency.
	OperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Store operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// KeyMappings counts placeholder keys replaced by server keys.
	KeyMappings = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_mappings_total",
			Help:      "Total placeholder keys mapped to server-assigned keys",
		},
	)
)

// RecordOperation records the outcome and latency of a single store call.
func RecordOperation(operation string, ok bool, seconds float64) {
	status := "ok"
	if !ok {
		status = "error"
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationLatency.WithLabelValues(operation).Observe(seconds)
}

// RecordBatch records the outcome and latency of a finished batch.
func RecordBatch(outcome string, seconds float64) {
	BatchesTotal.WithLabelValues(outcome).Inc()
	BatchDuration.WithLabelValues(outcome).Observe(seconds)
}
