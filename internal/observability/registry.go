package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics
// so handlers and services never touch the global Prometheus collectors.
type MetricsRegistry interface {
	// HTTP Request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Report workflow metrics
	IncrementReportMutations(action, outcome string)

	// Object store metrics
	IncrementImageUploads(outcome string)
	RecordImageUploadLatency(duration time.Duration)

	// Access guard metrics
	IncrementAuthRejections(reason string)

	// Change event metrics
	IncrementEventPublishErrors()
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementReportMutations(action, outcome string) {
	ReportMutations.WithLabelValues(action, outcome).Inc()
}

func (r *PrometheusRegistry) IncrementImageUploads(outcome string) {
	ImageUploads.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) RecordImageUploadLatency(duration time.Duration) {
	ImageUploadLatency.Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementAuthRejections(reason string) {
	AuthRejections.WithLabelValues(reason).Inc()
}

func (r *PrometheusRegistry) IncrementEventPublishErrors() {
	EventPublishErrors.Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementReportMutations(action, outcome string)                      {}
func (r *NoOpRegistry) IncrementImageUploads(outcome string)                                 {}
func (r *NoOpRegistry) RecordImageUploadLatency(duration time.Duration)                      {}
func (r *NoOpRegistry) IncrementAuthRejections(reason string)                                {}
func (r *NoOpRegistry) IncrementEventPublishErrors()                                         {}
