package observability

import (
	"strings"
	"sync"
	"time"
)

// MockMetricsRegistry records counter increments so tests can assert on them.
// Latencies are ignored.
type MockMetricsRegistry struct {
	mu       sync.Mutex
	counters map[string]int
}

func (m *MockMetricsRegistry) inc(parts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int)
	}
	m.counters[strings.Join(parts, "|")]++
}

// Count returns how many times the counter identified by parts was incremented,
// e.g. Count("report_mutations", "create", "success").
func (m *MockMetricsRegistry) Count(parts ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[strings.Join(parts, "|")]
}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.inc("requests", endpoint, method, status)
}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementReportMutations(action, outcome string) {
	m.inc("report_mutations", action, outcome)
}
func (m *MockMetricsRegistry) IncrementImageUploads(outcome string) {
	m.inc("image_uploads", outcome)
}
func (m *MockMetricsRegistry) RecordImageUploadLatency(duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementAuthRejections(reason string) {
	m.inc("auth_rejections", reason)
}
func (m *MockMetricsRegistry) IncrementEventPublishErrors() {
	m.inc("event_publish_errors")
}
