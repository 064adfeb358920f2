// Package monitoring exposes Prometheus metrics for the enrollment service.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	admissionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrollment_admission_attempts_total",
			Help: "Apply outcomes by result",
		},
		[]string{"result"},
	)

	cancellationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrollment_cancellation_attempts_total",
			Help: "Cancel outcomes by result",
		},
		[]string{"result"},
	)

	admissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enrollment_admission_duration_seconds",
			Help:    "Latency of Apply including internal retries",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	admissionRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "enrollment_admission_retries_total",
			Help: "Transient-conflict retries performed inside Apply",
		},
	)

	notificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "enrollment_notifications_dropped_total",
			Help: "Notifications discarded because the dispatch buffer was full",
		},
	)
)

// RecordAdmission records one Apply outcome and its total latency.
func RecordAdmission(result string, elapsed time.Duration) {
	admissionAttempts.WithLabelValues(result).Inc()
	admissionDuration.Observe(elapsed.Seconds())
}

// RecordCancellation records one Cancel outcome.
func RecordCancellation(result string) {
	cancellationAttempts.WithLabelValues(result).Inc()
}

// RecordAdmissionRetry records one internal retry of the admission
// transaction after a transient conflict.
func RecordAdmissionRetry() {
	admissionRetries.Inc()
}

// RecordNotificationDropped records one discarded notification.
func RecordNotificationDropped() {
	notificationsDropped.Inc()
}
