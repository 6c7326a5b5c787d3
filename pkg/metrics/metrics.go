package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// XML 导入次数
	ImportCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_import_total",
			Help: "Total number of project XML imports",
		},
		[]string{"outcome"}, // outcome: success, invalid, duplicate, in_progress, failed
	)

	// XML 导入耗时（秒）
	ImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "project_import_duration_seconds",
			Help:    "Project XML import duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	// 导入时创建的记录数
	ImportedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_import_records_total",
			Help: "Records created by project XML imports",
		},
		[]string{"kind"}, // kind: phase, task, employee, assignment, dependency
	)

	// 导入时跳过的记录数
	ImportSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_import_skipped_total",
			Help: "Records skipped by project XML imports",
		},
		[]string{"reason"},
	)

	// 进度汇总耗时（秒）
	ProgressRecomputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "progress_recompute_duration_seconds",
			Help:    "Progress aggregation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"trigger"}, // trigger: import, task_update, task_delete, manual, event
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "table"},
	)

	// 慢查询计数
	DBSlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"routing_key", "queue"},
	)

	// Outbox 发布结果
	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Outbox events published to the broker",
		},
		[]string{"routing_key", "status"}, // status: sent, failed, breaker_open
	)
)

// RecordImport 记录一次导入的结果和耗时
func RecordImport(outcome string, duration time.Duration) {
	ImportCount.WithLabelValues(outcome).Inc()
	ImportDuration.Observe(duration.Seconds())
}

// AddImportedRecords 增加导入记录计数
func AddImportedRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	ImportedRecords.WithLabelValues(kind).Add(float64(n))
}

// IncrementImportSkipped 增加跳过记录计数
func IncrementImportSkipped(reason string) {
	ImportSkipped.WithLabelValues(reason).Inc()
}

// RecordProgressRecompute 记录进度汇总耗时
func RecordProgressRecompute(trigger string, duration time.Duration) {
	ProgressRecomputeDuration.WithLabelValues(trigger).Observe(duration.Seconds())
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery 记录一次慢查询
func IncrementSlowQuery() {
	DBSlowQueryCount.Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// IncrementOutboxPublished 记录 outbox 发布结果
func IncrementOutboxPublished(routingKey, status string) {
	OutboxPublished.WithLabelValues(routingKey, status).Inc()
}
