package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics
// This replaces direct access to global Prometheus metrics with dependency injection
type MetricsRegistry interface {
	// HTTP Request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Format metrics
	IncrementClassifications(category string)

	// Migration metrics
	IncrementMigrationRecords(outcome string)
	IncrementMigrationWrites(status string)
	RecordMigrationDuration(mode string, duration time.Duration)
	IncrementSinkErrors(sink string)

	// Creative matching metrics
	IncrementCreativeMatches(result string)
}

// PrometheusRegistry implements MetricsRegistry using the existing global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

// HTTP Request metrics
func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// Format metrics
func (r *PrometheusRegistry) IncrementClassifications(category string) {
	ClassificationCount.WithLabelValues(category).Inc()
}

// Migration metrics
func (r *PrometheusRegistry) IncrementMigrationRecords(outcome string) {
	MigrationRecords.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) IncrementMigrationWrites(status string) {
	MigrationWrites.WithLabelValues(status).Inc()
}

func (r *PrometheusRegistry) RecordMigrationDuration(mode string, duration time.Duration) {
	MigrationDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementSinkErrors(sink string) {
	SinkErrors.WithLabelValues(sink).Inc()
}

// Creative matching metrics
func (r *PrometheusRegistry) IncrementCreativeMatches(result string) {
	CreativeMatches.WithLabelValues(result).Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

// HTTP Request metrics
func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}

// Format metrics
func (r *NoOpRegistry) IncrementClassifications(category string) {}

// Migration metrics
func (r *NoOpRegistry) IncrementMigrationRecords(outcome string)                    {}
func (r *NoOpRegistry) IncrementMigrationWrites(status string)                      {}
func (r *NoOpRegistry) RecordMigrationDuration(mode string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementSinkErrors(sink string)                             {}

// Creative matching metrics
func (r *NoOpRegistry) IncrementCreativeMatches(result string) {}
