// Package metrics provides Prometheus collectors for fieldlog components.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Histogram bucket layout shared by duration metrics: 1ms to ~16s.
const (
	BucketStart1ms = 0.001
	BucketFactor2  = 2
	BucketCount15  = 15
)

func durationBuckets() []float64 {
	return prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15)
}

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
