package observability

import (
	"sync"
	"time"
)

// MockMetricsRegistry records counter increments in memory so tests can
// assert on them. Latencies and durations are ignored.
type MockMetricsRegistry struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMockMetricsRegistry returns an empty recorder.
func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{counts: make(map[string]int)}
}

func (m *MockMetricsRegistry) inc(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[key]++
}

// Count returns how often the metric with the given name and label was
// incremented, e.g. Count("migration_writes", "ok").
func (m *MockMetricsRegistry) Count(name, label string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name+":"+label]
}

// HTTP Request metrics
func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.inc("requests:" + endpoint + " " + method + " " + status)
}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}

// Format metrics
func (m *MockMetricsRegistry) IncrementClassifications(category string) {
	m.inc("classifications:" + category)
}

// Migration metrics
func (m *MockMetricsRegistry) IncrementMigrationRecords(outcome string) {
	m.inc("migration_records:" + outcome)
}
func (m *MockMetricsRegistry) IncrementMigrationWrites(status string) {
	m.inc("migration_writes:" + status)
}
func (m *MockMetricsRegistry) RecordMigrationDuration(mode string, duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementSinkErrors(sink string) {
	m.inc("sink_errors:" + sink)
}

// Creative matching metrics
func (m *MockMetricsRegistry) IncrementCreativeMatches(result string) {
	m.inc("creative_matches:" + result)
}
