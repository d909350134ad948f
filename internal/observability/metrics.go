package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floodwatch_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "floodwatch_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// report create/update/delete attempts labelled by outcome
	ReportMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floodwatch_report_mutations_total",
			Help: "Total report mutations by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// image uploads to the object store labelled by outcome
	ImageUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floodwatch_image_uploads_total",
			Help: "Total image uploads by outcome",
		},
		[]string{"outcome"},
	)

	// latency of object store writes
	ImageUploadLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "floodwatch_image_upload_duration_seconds",
			Help:    "Duration of image uploads to the object store",
			Buckets: prometheus.DefBuckets,
		},
	)

	// requests rejected by the access guard
	AuthRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floodwatch_auth_rejections_total",
			Help: "Total requests rejected for missing or invalid tokens",
		},
		[]string{"reason"},
	)

	// change events that could not be published
	EventPublishErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "floodwatch_event_publish_errors_total",
			Help: "Total report change events that failed to publish",
		},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		ReportMutations,
		ImageUploads,
		ImageUploadLatency,
		AuthRejections,
		EventPublishErrors,
	)
}
