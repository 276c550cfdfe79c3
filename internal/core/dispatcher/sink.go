package dispatcher

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/penwyp/mini-classroom/config"
	"github.com/penwyp/mini-classroom/internal/core/observability"
	pkgkafka "github.com/penwyp/mini-classroom/pkg/kafka"
	"github.com/penwyp/mini-classroom/pkg/logger"
	"github.com/penwyp/mini-classroom/pkg/protocol"
	"go.uber.org/zap"
)

// EventSink 接收每一条成功分发的课堂事件，供归档 worker 消费
type EventSink interface {
	Publish(ctx context.Context, rec *protocol.EventRecord) error
	Close() error
}

// KafkaSink 把事件发布到 Kafka，以课堂 ID 作分区键，
// 保证同一课堂的事件落在同一分区、保持顺序
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink 创建 Kafka 审计流
func NewKafkaSink(cfg *config.Kafka) *KafkaSink {
	return &KafkaSink{writer: pkgkafka.NewWriter(cfg)}
}

// Publish 发布一条事件记录
func (s *KafkaSink) Publish(ctx context.Context, rec *protocol.EventRecord) error {
	data, err := protocol.EncodeEventRecord(rec)
	if err != nil {
		observability.KafkaMessagesSent.WithLabelValues("failed").Inc()
		return err
	}

	start := time.Now()
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.ClassroomID),
		Value: data,
	})
	observability.KafkaMessageLatency.WithLabelValues().Observe(time.Since(start).Seconds())
	if err != nil {
		observability.KafkaMessagesSent.WithLabelValues("failed").Inc()
		logger.Error("Failed to publish event to Kafka",
			zap.String("classroomID", rec.ClassroomID),
			zap.String("action", rec.Action.String()),
			zap.Error(err))
		return err
	}
	observability.KafkaMessagesSent.WithLabelValues("success").Inc()
	return nil
}

// Close 关闭底层 writer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// NopSink 丢弃所有事件，供测试和未配置 Kafka 的部署使用
type NopSink struct{}

func (NopSink) Publish(context.Context, *protocol.EventRecord) error { return nil }
func (NopSink) Close() error                                         { return nil }
