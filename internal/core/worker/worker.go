package worker

import (
	"context"
	"sync"
	"time"

	"github.com/penwyp/mini-classroom/config"
	"github.com/penwyp/mini-classroom/internal/core/observability"
	pkgcache "github.com/penwyp/mini-classroom/pkg/cache"
	pkgkafka "github.com/penwyp/mini-classroom/pkg/kafka"
	"github.com/penwyp/mini-classroom/pkg/logger"
	"github.com/penwyp/mini-classroom/pkg/protocol"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// staleEventAge 超过该时长的事件不再归档，避免重放旧分区时刷库
const staleEventAge = 5 * time.Minute

// Worker 消费课堂事件审计流并归档到 Redis
type Worker struct {
	config      *config.Config
	kafkaReader *kafka.Reader
	redisClient redis.UniversalClient
	storage     *EventStorage
	keyBuilder  *pkgcache.RedisKeyBuilder
	wg          sync.WaitGroup
}

// NewWorker 创建归档 worker
func NewWorker(cfg *config.Config) (*Worker, error) {
	redisClient, err := pkgcache.NewRedisClient(&cfg.Redis)
	if err != nil {
		return nil, err
	}

	keyBuilder := pkgcache.NewRedisKeyBuilder()
	return &Worker{
		config:      cfg,
		kafkaReader: pkgkafka.NewReader(&cfg.Kafka),
		redisClient: redisClient,
		storage:     NewEventStorage(redisClient, keyBuilder),
		keyBuilder:  keyBuilder,
	}, nil
}

// Start 启动消费循环
func (w *Worker) Start(ctx context.Context) {
	logger.Info("Worker started, consuming classroom events...")
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				logger.Info("Worker context canceled, stopping...")
				return
			default:
				msg, err := w.kafkaReader.ReadMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Error("Failed to read Kafka message", zap.Error(err))
					continue
				}
				w.processMessage(ctx, msg)
			}
		}
	}()
}

// processMessage 校验并归档一条事件
func (w *Worker) processMessage(ctx context.Context, msg kafka.Message) {
	rec, err := protocol.DecodeEventRecord(msg.Value)
	if err != nil {
		logger.Warn("Failed to decode event record", zap.Error(err))
		observability.EventsArchived.WithLabelValues("skipped").Inc()
		return
	}
	if rec.ClassroomID == "" || !rec.Action.Valid() {
		logger.Warn("Discarding malformed event record",
			zap.String("classroomID", rec.ClassroomID),
			zap.Uint8("action", uint8(rec.Action)))
		observability.EventsArchived.WithLabelValues("skipped").Inc()
		return
	}

	// 丢弃过旧的事件
	if time.Now().UnixMilli()-rec.Timestamp > staleEventAge.Milliseconds() {
		logger.Warn("Discarding stale event",
			zap.String("classroomID", rec.ClassroomID),
			zap.Int64("timestamp", rec.Timestamp))
		observability.EventsArchived.WithLabelValues("skipped").Inc()
		return
	}

	if !w.rateLimit(ctx, rec.UserID) {
		logger.Warn("Rate limit exceeded",
			zap.String("classroomID", rec.ClassroomID),
			zap.String("userID", rec.UserID))
		observability.RateLimitRejections.WithLabelValues(rec.UserID).Inc()
		return
	}

	if err := w.storage.Store(ctx, rec); err != nil {
		logger.Error("Failed to archive event",
			zap.String("classroomID", rec.ClassroomID),
			zap.Error(err))
	}
}

// rateLimit 用 Lua 脚本对单个成员做每分钟事件数限制
func (w *Worker) rateLimit(ctx context.Context, userID string) bool {
	if userID == "" {
		return true
	}
	key := w.keyBuilder.RateLimitKey(userID)
	script := redis.NewScript(`
        local count = redis.call("INCR", KEYS[1])
        if count == 1 then
            redis.call("EXPIRE", KEYS[1], 60)
        end
        if count > 120 then
            return 0
        end
        return 1
    `)
	start := time.Now()
	result, err := script.Run(ctx, w.redisClient, []string{key}).Int()
	observability.RedisOperationLatency.WithLabelValues("throttle").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.RedisOperations.WithLabelValues("throttle", "failed").Inc()
		logger.Error("Rate limit script failed", zap.Error(err))
		return false
	}
	observability.RedisOperations.WithLabelValues("throttle", "success").Inc()
	return result == 1
}

// Close 关闭消费者和存储连接
func (w *Worker) Close() {
	if err := w.kafkaReader.Close(); err != nil {
		logger.Error("Failed to close Kafka reader", zap.Error(err))
	}
	if err := w.redisClient.Close(); err != nil {
		logger.Error("Failed to close Redis client", zap.Error(err))
	}
	w.wg.Wait()
}
