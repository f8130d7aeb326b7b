// Package metrics provides Prometheus metrics for the Clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MergeOperationsTotal tracks previews and merges by result code
	MergeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "operations_total",
			Help:      "Total number of merge previews and executions by result code",
		},
		[]string{"operation", "code"},
	)

	// MergeDuration tracks preview and merge duration in seconds
	MergeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "duration_seconds",
			Help:      "Duration of merge previews and executions in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	// MergeRecordsTotal tracks rows touched by committed merges
	MergeRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "records_total",
			Help:      "Total number of rows handled by committed merges by relation kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaPublishDuration tracks Kafka publish duration
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)
)

// RecordMergeOperation records a preview or merge outcome. code is "OK" on success.
func RecordMergeOperation(operation, code string, durationSeconds float64) {
	MergeOperationsTotal.WithLabelValues(operation, code).Inc()
	MergeDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordMergeRecords adds count rows for a relation kind outcome
func RecordMergeRecords(kind, outcome string, count int) {
	if count <= 0 {
		return
	}
	MergeRecordsTotal.WithLabelValues(kind, outcome).Add(float64(count))
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}
