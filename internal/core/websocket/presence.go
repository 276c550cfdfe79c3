package websocket

import (
	"context"
	"time"

	"github.com/penwyp/mini-classroom/internal/core/observability"
	pkgcache "github.com/penwyp/mini-classroom/pkg/cache"
	"github.com/penwyp/mini-classroom/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPresence 把存活课堂登记到 Redis 的活跃课堂集合，
// 归档 worker 据此发现正在进行的课堂
type RedisPresence struct {
	client     redis.UniversalClient
	keyBuilder *pkgcache.RedisKeyBuilder
	ttl        time.Duration
}

// NewRedisPresence 创建基于 Redis 的课堂登记
func NewRedisPresence(client redis.UniversalClient, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisPresence{
		client:     client,
		keyBuilder: pkgcache.NewRedisKeyBuilder(),
		ttl:        ttl,
	}
}

// RegisterClassroom 把课堂加入活跃集合并续期
func (p *RedisPresence) RegisterClassroom(ctx context.Context, classroomID string) error {
	key := p.keyBuilder.ActiveClassroomsKey()
	start := time.Now()
	err := p.client.SAdd(ctx, key, classroomID).Err()
	observability.RedisOperationLatency.WithLabelValues("sadd").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.RedisOperations.WithLabelValues("sadd", "failed").Inc()
		return err
	}
	observability.RedisOperations.WithLabelValues("sadd", "success").Inc()

	if err := p.client.Expire(ctx, key, p.ttl).Err(); err != nil {
		return err
	}
	logger.Info("Classroom registered as active",
		zap.String("classroomID", classroomID),
		zap.String("redis_key", key))
	return nil
}

// UnregisterClassroom 把课堂移出活跃集合
func (p *RedisPresence) UnregisterClassroom(ctx context.Context, classroomID string) error {
	key := p.keyBuilder.ActiveClassroomsKey()
	start := time.Now()
	err := p.client.SRem(ctx, key, classroomID).Err()
	observability.RedisOperationLatency.WithLabelValues("srem").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.RedisOperations.WithLabelValues("srem", "failed").Inc()
		return err
	}
	observability.RedisOperations.WithLabelValues("srem", "success").Inc()
	return nil
}
