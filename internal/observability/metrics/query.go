package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query cache result labels.
const (
	CacheFresh = "fresh"
	CacheStale = "stale"
	CacheMiss  = "miss"
)

// QueryMetrics contains Prometheus metrics for the read cache
type QueryMetrics struct {
	readsTotal         *prometheus.CounterVec
	refetchesTotal     *prometheus.CounterVec
	invalidationsTotal *prometheus.CounterVec
	collectors         []prometheus.Collector
}

// NewQueryMetrics creates and registers new query cache metrics
func NewQueryMetrics(registry prometheus.Registerer) (*QueryMetrics, error) {
	m := &QueryMetrics{}
	m.readsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldlog_query_reads_total",
			Help: "Cached reads by entity and result (fresh, stale, miss)",
		},
		[]string{"entity", "result"},
	)
	m.refetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldlog_query_refetches_total",
			Help: "Fetches issued by the query cache",
		},
		[]string{"entity", "mode", "status"},
	)
	m.invalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldlog_query_invalidations_total",
			Help: "Cache invalidations after mutations",
		},
		[]string{"entity"},
	)
	m.collectors = []prometheus.Collector{m.readsTotal, m.refetchesTotal, m.invalidationsTotal}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector
func (m *QueryMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *QueryMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordRead records a cache read result.
func (m *QueryMetrics) RecordRead(entity, result string) {
	if m == nil {
		return
	}
	m.readsTotal.WithLabelValues(entity, result).Inc()
}

// RecordFetch records a fetch; mode is "sync" or "background".
func (m *QueryMetrics) RecordFetch(entity, mode string, err error) {
	if m == nil {
		return
	}
	m.refetchesTotal.WithLabelValues(entity, mode, statusOf(err)).Inc()
}

// RecordInvalidation records an invalidation.
func (m *QueryMetrics) RecordInvalidation(entity string) {
	if m == nil {
		return
	}
	m.invalidationsTotal.WithLabelValues(entity).Inc()
}
