package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediahub_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediahub_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// classifications served, labelled by resulting category
	ClassificationCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediahub_format_classifications_total",
			Help: "Total dimension classifications",
		},
		[]string{"category"},
	)

	// newsletter ads processed by the format migration, labelled by outcome
	MigrationRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediahub_format_migration_records_total",
			Help: "Total newsletter ads processed by the format migration",
		},
		[]string{"outcome"},
	)

	// publication writes issued by the format migration
	MigrationWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediahub_format_migration_writes_total",
			Help: "Total publication updates issued by the format migration",
		},
		[]string{"status"},
	)

	// wall time of a migration run
	MigrationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediahub_format_migration_duration_seconds",
			Help:    "Duration of format migration runs",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"mode"},
	)

	// failures of optional sinks (review queue, run notifications)
	SinkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediahub_sink_errors_total",
			Help: "Total errors writing to optional sinks",
		},
		[]string{"sink"},
	)

	// uploaded creative files by match result
	CreativeMatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediahub_creative_matches_total",
			Help: "Total uploaded creative files processed by the matcher",
		},
		[]string{"result"},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		ClassificationCount,
		MigrationRecords,
		MigrationWrites,
		MigrationDuration,
		SinkErrors,
		CreativeMatches,
	)
}
