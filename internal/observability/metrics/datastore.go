package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for store operations
type DatastoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	collectors        []prometheus.Collector
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry prometheus.Registerer) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{}
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldlog_datastore_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"backend", "entity", "operation", "status"},
	)
	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldlog_datastore_operation_duration_seconds",
			Help:    "Time taken for store operations",
			Buckets: durationBuckets(),
		},
		[]string{"backend", "entity", "operation"},
	)
	m.collectors = []prometheus.Collector{m.operationsTotal, m.operationDuration}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordOperation records one store operation and its duration.
func (m *DatastoreMetrics) RecordOperation(backend, entity, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(backend, entity, operation, statusOf(err)).Inc()
	m.operationDuration.WithLabelValues(backend, entity, operation).Observe(time.Since(start).Seconds())
}
