// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationRequestsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facecast_generation_requests_completed_total",
			Help: "Total number of generation requests that returned content",
		},
		[]string{"model"},
	)

	GenerationRequestsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facecast_generation_requests_failed_total",
			Help: "Total number of generation requests that failed",
		},
		[]string{"model", "error_code"},
	)

	GenerationRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "facecast_generation_request_duration_seconds",
			Help:    "Duration of a single generation request in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"model"},
	)

	GenerationRequestsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "facecast_generation_requests_active",
			Help: "Number of generation requests currently in flight",
		},
	)

	BatchesDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "facecast_batches_dispatched_total",
			Help: "Total number of concurrent batches dispatched",
		},
	)

	ArchiveEntries = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "facecast_archive_entries",
			Help:    "Number of images per built archive",
			Buckets: prometheus.LinearBuckets(1, 4, 8),
		},
	)

	HandoffNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facecast_handoff_notifications_total",
			Help: "Handoff notifications by outcome",
		},
		[]string{"status"},
	)
)
