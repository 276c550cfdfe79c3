package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/penwyp/mini-classroom/internal/core/observability"
	pkgcache "github.com/penwyp/mini-classroom/pkg/cache"
	"github.com/penwyp/mini-classroom/pkg/logger"
	"github.com/penwyp/mini-classroom/pkg/protocol"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// EventStorage 把课堂事件归档到 Redis：
// 每个课堂一个按时间排序的事件集合（封顶保留），外加成员活跃度排行
type EventStorage struct {
	redisClient redis.UniversalClient
	keyBuilder  *pkgcache.RedisKeyBuilder
}

// NewEventStorage 创建事件归档存储
func NewEventStorage(redisClient redis.UniversalClient, keyBuilder *pkgcache.RedisKeyBuilder) *EventStorage {
	return &EventStorage{
		redisClient: redisClient,
		keyBuilder:  keyBuilder,
	}
}

// Store 归档一条课堂事件
func (s *EventStorage) Store(spanCtx context.Context, rec *protocol.EventRecord) error {
	ctx, span := observability.StartSpan(spanCtx, "EventStorage.Store",
		trace.WithAttributes(
			attribute.String("classroom_id", rec.ClassroomID),
			attribute.String("user_id", rec.UserID),
			attribute.String("action", rec.Action.String()),
		))
	defer span.End()

	data, err := protocol.EncodeEventRecord(rec)
	if err != nil {
		observability.RecordError(span, err, "EventStorage.Store")
		observability.EventsArchived.WithLabelValues("failed").Inc()
		return err
	}

	startTime := time.Now()
	pipe := s.redisClient.Pipeline()

	// 成员可能在同一毫秒发多条事件，加 userID 前缀保证成员唯一
	eventsKey := s.keyBuilder.ClassroomEventsKey(rec.ClassroomID)
	uniqueMember := fmt.Sprintf("%s:%d:%s", rec.UserID, rec.Timestamp, data)
	pipe.ZAdd(ctx, eventsKey, redis.Z{
		Score:  float64(rec.Timestamp),
		Member: uniqueMember,
	})

	// 每个课堂只保留最近 1000 条事件
	pipe.ZRemRangeByRank(ctx, eventsKey, 0, -1001)
	pipe.Expire(ctx, eventsKey, 24*time.Hour)

	// 成员活跃度排行
	rankingKey := s.keyBuilder.ClassroomRankingKey(rec.ClassroomID)
	pipe.ZIncrBy(ctx, rankingKey, 1, rec.UserID)

	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error("Failed to archive event in Redis",
			zap.String("classroomID", rec.ClassroomID),
			zap.String("userID", rec.UserID),
			zap.String("action", rec.Action.String()),
			zap.Error(err))
		observability.RecordError(span, err, "EventStorage.Store")
		observability.RedisOperations.WithLabelValues("pipeline", "failed").Inc()
		observability.RankingUpdates.WithLabelValues("failed").Inc()
		observability.EventsArchived.WithLabelValues("failed").Inc()
		return err
	}

	observability.RedisOperations.WithLabelValues("pipeline", "success").Inc()
	observability.RankingUpdates.WithLabelValues("success").Inc()
	observability.EventsArchived.WithLabelValues("success").Inc()
	observability.RedisOperationLatency.WithLabelValues("pipeline").Observe(time.Since(startTime).Seconds())

	logger.Debug("Event archived",
		zap.String("classroomID", rec.ClassroomID),
		zap.String("userID", rec.UserID),
		zap.String("action", rec.Action.String()))
	return nil
}
