package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Lookup outcome labels.
const (
	LookupHit     = "cache_hit"
	LookupOK      = "ok"
	LookupFailed  = "failed"
	LookupSkipped = "skipped"
)

// LookupMetrics contains Prometheus metrics for the taxonomy and geocoding clients
type LookupMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	collectors      []prometheus.Collector
}

// NewLookupMetrics creates and registers new lookup metrics
func NewLookupMetrics(registry prometheus.Registerer) (*LookupMetrics, error) {
	m := &LookupMetrics{}
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldlog_lookup_requests_total",
			Help: "Enrichment lookups by service and outcome",
		},
		[]string{"service", "outcome"},
	)
	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldlog_lookup_request_duration_seconds",
			Help:    "Upstream request latency for enrichment lookups",
			Buckets: durationBuckets(),
		},
		[]string{"service"},
	)
	m.collectors = []prometheus.Collector{m.requestsTotal, m.requestDuration}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector
func (m *LookupMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *LookupMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordOutcome counts a lookup outcome for service ("taxonomy", "geocode").
func (m *LookupMetrics) RecordOutcome(service, outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(service, outcome).Inc()
}

// RecordDuration records the latency of an upstream request.
func (m *LookupMetrics) RecordDuration(service string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(service).Observe(d.Seconds())
}
