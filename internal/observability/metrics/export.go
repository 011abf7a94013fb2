package metrics

import "github.com/prometheus/client_golang/prometheus"

// Export step labels.
const (
	StepLocal  = "local"
	StepUpload = "upload"
	StepLog    = "log"
	StepStamp  = "stamp"
)

// ExportMetrics contains Prometheus metrics for the export pipeline and events
type ExportMetrics struct {
	stepsTotal  *prometheus.CounterVec
	rowsTotal   prometheus.Counter
	eventsTotal *prometheus.CounterVec
	collectors  []prometheus.Collector
}

// NewExportMetrics creates and registers new export metrics
func NewExportMetrics(registry prometheus.Registerer) (*ExportMetrics, error) {
	m := &ExportMetrics{}
	m.stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldlog_export_steps_total",
			Help: "Export pipeline steps by outcome",
		},
		[]string{"step", "status"},
	)
	m.rowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fieldlog_export_rows_total",
		Help: "Spreadsheet data rows written",
	})
	m.eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldlog_events_published_total",
			Help: "Domain events published to MQTT",
		},
		[]string{"type", "status"},
	)
	m.collectors = []prometheus.Collector{m.stepsTotal, m.rowsTotal, m.eventsTotal}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector
func (m *ExportMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *ExportMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordStep records the outcome of one export step.
func (m *ExportMetrics) RecordStep(step, status string) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(step, status).Inc()
}

// RecordRows adds written data rows.
func (m *ExportMetrics) RecordRows(n int) {
	if m == nil {
		return
	}
	m.rowsTotal.Add(float64(n))
}

// RecordEvent records a publish attempt.
func (m *ExportMetrics) RecordEvent(eventType string, err error) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(eventType, statusOf(err)).Inc()
}
