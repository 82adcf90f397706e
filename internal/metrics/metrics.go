// Package metrics provides Prometheus instrumentation for the intake service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsTotal counts inbound events by kind (declaration, artifact, ignored).
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_events_total",
			Help: "Inbound chat events by kind",
		},
		[]string{"kind"},
	)

	// SubmissionsTotal counts transition and dispatch outcomes per format.
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_submissions_total",
			Help: "Submission outcomes by format",
		},
		[]string{"format", "outcome"},
	)

	// ExtractionDuration tracks artifact decoding plus metric extraction.
	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intake_extraction_duration_seconds",
			Help:    "Artifact decoding and extraction duration",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"format"},
	)

	// OCRDuration tracks tesseract runs.
	OCRDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intake_ocr_duration_seconds",
			Help:    "Tesseract OCR duration",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20},
		},
		[]string{"status"},
	)

	// RequestDuration tracks HTTP request duration in server mode.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intake_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path", "status"},
	)

	// RemindersTotal counts reminder posts by status.
	RemindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_reminders_total",
			Help: "Weekly reminder posts by status",
		},
		[]string{"status"},
	)
)

// RecordEvent counts one inbound event.
func RecordEvent(kind string) {
	EventsTotal.WithLabelValues(kind).Inc()
}

// RecordSubmission counts one submission outcome.
func RecordSubmission(format, outcome string) {
	SubmissionsTotal.WithLabelValues(format, outcome).Inc()
}

// ObserveExtraction records how long a dispatch took.
func ObserveExtraction(format string, d time.Duration) {
	ExtractionDuration.WithLabelValues(format).Observe(d.Seconds())
}

// ObserveOCR records one OCR run. Its signature matches ocr.Observer.
func ObserveOCR(status string, d time.Duration) {
	OCRDuration.WithLabelValues(status).Observe(d.Seconds())
}

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, d time.Duration) {
	RequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}

// RecordReminder counts one reminder attempt.
func RecordReminder(status string) {
	RemindersTotal.WithLabelValues(status).Inc()
}
