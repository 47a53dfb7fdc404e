package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder defines a minimal interface for recording workflow metrics.
type Recorder interface {
	// RecordOperation records an operation ("sighting_create", "prediction_search")
	// with its status ("success", "error").
	RecordOperation(operation, status string)
	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)
	// RecordError records an error with its category.
	RecordError(operation, errorType string)
}

// WorkflowMetrics implements Recorder with Prometheus collectors.
type WorkflowMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec
}

// NewWorkflowMetrics creates the collectors and registers them with registry.
func NewWorkflowMetrics(registry prometheus.Registerer) (*WorkflowMetrics, error) {
	m := &WorkflowMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "birdtarifa_operations_total",
				Help: "Workflow operations by outcome",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "birdtarifa_operation_duration_seconds",
				Help:    "Workflow operation duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "birdtarifa_operation_errors_total",
				Help: "Workflow errors by category",
			},
			[]string{"operation", "category"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register workflow metrics: %w", err)
	}
	return m, nil
}

// RecordOperation implements Recorder.
func (m *WorkflowMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *WorkflowMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *WorkflowMetrics) RecordError(operation, errorType string) {
	m.operationErrors.WithLabelValues(operation, errorType).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *WorkflowMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
	m.operationErrors.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *WorkflowMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
	m.operationErrors.Collect(ch)
}

// NoOpRecorder discards everything.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordOperation(string, string) {}
func (NoOpRecorder) RecordDuration(string, float64) {}
func (NoOpRecorder) RecordError(string, string)     {}
