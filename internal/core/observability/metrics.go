package observability

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// 定义全局 Prometheus 指标用于课堂协作系统的可观测性
var (
	// ActiveConnections 跟踪当前活跃的 WebSocket 连接数，按组件分类
	// 连接建立时调用 Inc()，断开时调用 Dec()
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "classroom_websocket_connections_active",
			Help: "当前活跃的 WebSocket 连接数",
		},
		[]string{"component"}, // component: gateway, client
	)

	// ActiveClassrooms 跟踪当前存活的课堂数
	// 课堂创建时调用 Inc()，销毁时调用 Dec()
	ActiveClassrooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "classroom_rooms_active",
			Help: "当前存活的课堂数",
		},
	)

	// EventsProcessed 统计分发器处理的课堂事件数，按动作和结果分类
	// 示例：EventsProcessed.WithLabelValues("code_change", "success").Inc()
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classroom_events_processed_total",
			Help: "处理的课堂事件总数",
		},
		[]string{"action", "status"}, // status: success, rejected, failed
	)

	// EventLatency 测量课堂事件处理延迟（秒），按动作分类
	EventLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classroom_event_latency_seconds",
			Help:    "课堂事件处理延迟（秒）",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"action"},
	)

	// ActionRejections 统计被拒绝的动作数，按错误分类统计
	// 示例：ActionRejections.WithLabelValues("permission_denied").Inc()
	ActionRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classroom_action_rejections_total",
			Help: "被拒绝的课堂动作总数",
		},
		[]string{"kind"}, // kind: unauthenticated, permission_denied, not_found, invalid_state, malformed_payload
	)

	// BroadcastDeliveries 统计广播投递结果，按结果分类
	// 入队成功计 enqueued；队列满丢弃计 dropped_overflow；连接已关闭计 dropped_closed
	BroadcastDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classroom_broadcast_deliveries_total",
			Help: "广播投递结果总数",
		},
		[]string{"status"}, // status: enqueued, dropped_overflow, dropped_closed
	)

	// WebSocketConnectionErrors 统计 WebSocket 连接错误数，按组件和错误类型分类
	WebSocketConnectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classroom_websocket_connection_errors_total",
			Help: "WebSocket 连接错误总数",
		},
		[]string{"component", "error_type"}, // error_type: accept, read, write, close
	)

	// KafkaMessagesSent 统计发布到 Kafka 审计流的事件数，按状态分类
	KafkaMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classroom_kafka_messages_sent_total",
			Help: "发布到 Kafka 的事件总数",
		},
		[]string{"status"}, // status: success, failed
	)

	// KafkaMessageLatency 测量 Kafka 事件写入延迟（秒）
	KafkaMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classroom_kafka_message_latency_seconds",
			Help:    "Kafka 事件写入延迟（秒）",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
		[]string{},
	)

	// EventsArchived 统计归档 worker 落盘的事件数，按状态分类
	EventsArchived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classroom_events_archived_total",
			Help: "归档到 Redis 的事件总数",
		},
		[]string{"status"}, // status: success, failed, skipped
	)

	// RedisOperations 统计 Redis 操作数，按操作类型和状态分类
	RedisOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classroom_redis_operations_total",
			Help: "Redis 操作总数",
		},
		[]string{"operation", "status"}, // operation: sadd, srem, zadd, zremrangebyrank, throttle
	)

	// RedisOperationLatency 测量 Redis 操作延迟（秒），按操作类型分类
	RedisOperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classroom_redis_operation_latency_seconds",
			Help:    "Redis 操作延迟（秒）",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"operation"},
	)

	// RankingUpdates 统计课堂活跃度排行更新数，按状态分类
	RankingUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classroom_ranking_updates_total",
			Help: "课堂活跃度排行更新总数",
		},
		[]string{"status"},
	)

	// RateLimitRejections 统计因频率限制被丢弃的事件数，按用户分类
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classroom_rate_limit_rejections_total",
			Help: "因频率限制丢弃的事件总数",
		},
		[]string{"user_id"},
	)

	// ProtocolParseErrors 统计协议解析错误数，按组件分类
	ProtocolParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classroom_protocol_parse_errors_total",
			Help: "协议解析错误总数",
		},
		[]string{"component"},
	)

	// CompressionRatio 测量出站事件压缩比率（压缩后大小/原始大小）
	CompressionRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classroom_payload_compression_ratio",
			Help:    "出站事件压缩比率（压缩后大小/原始大小）",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	// metricsInitialized 确保指标只初始化一次
	metricsInitialized bool
)

// InitMetrics 初始化所有 Prometheus 指标（如果尚未初始化）
func InitMetrics() {
	if metricsInitialized {
		return
	}
	// promauto 在包级别已自动注册，这里仅作初始化标记
	metricsInitialized = true
}

// ResetMetrics 重置所有支持重置的指标到初始状态（测试用）
func ResetMetrics() {
	ActiveConnections.Reset()
	EventsProcessed.Reset()
	EventLatency.Reset()
	ActionRejections.Reset()
	BroadcastDeliveries.Reset()
	WebSocketConnectionErrors.Reset()
	KafkaMessagesSent.Reset()
	KafkaMessageLatency.Reset()
	EventsArchived.Reset()
	RedisOperations.Reset()
	RedisOperationLatency.Reset()
	RankingUpdates.Reset()
	RateLimitRejections.Reset()
	ProtocolParseErrors.Reset()
	ActiveClassrooms.Set(0)
}

// RecordLatency 记录操作延迟并更新相应的 Histogram 指标
func RecordLatency(ctx context.Context, operation string, duration time.Duration, labels ...string) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("latency", trace.WithAttributes(
		attribute.String("operation", operation),
		attribute.Float64("duration_seconds", duration.Seconds()),
	))

	switch {
	case strings.HasPrefix(operation, "dispatch"):
		if len(labels) < 1 {
			labels = []string{"none"}
		}
		EventLatency.WithLabelValues(labels[0]).Observe(duration.Seconds())
	case strings.HasPrefix(operation, "kafka"):
		KafkaMessageLatency.WithLabelValues().Observe(duration.Seconds())
	case strings.HasPrefix(operation, "redis"):
		if len(labels) < 1 {
			labels = []string{"generic"}
		}
		RedisOperationLatency.WithLabelValues(labels[0]).Observe(duration.Seconds())
	}
}

// RecordError 记录错误并更新相应的 Counter 指标
func RecordError(span trace.Span, err error, operation string, labels ...string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	switch {
	case strings.Contains(operation, "websocket"):
		if len(labels) < 2 {
			labels = []string{"gateway", "generic"}
		}
		WebSocketConnectionErrors.WithLabelValues(labels...).Inc()
	case strings.Contains(operation, "kafka"):
		KafkaMessagesSent.WithLabelValues("failed").Inc()
	case strings.Contains(operation, "redis"):
		if len(labels) < 2 {
			labels = []string{"generic", "failed"}
		}
		RedisOperations.WithLabelValues(labels...).Inc()
	case strings.Contains(operation, "protocol"):
		if len(labels) < 1 {
			labels = []string{"gateway"}
		}
		ProtocolParseErrors.WithLabelValues(labels[0]).Inc()
	}
}
