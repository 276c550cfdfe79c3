package cache

import (
	"context"
	"fmt"

	"github.com/penwyp/mini-classroom/config"
	"github.com/penwyp/mini-classroom/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient 创建并返回 Redis 客户端，单节点与集群地址均支持
func NewRedisClient(cfg *config.Redis) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Error("Failed to ping Redis", zap.Error(err))
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	logger.Info("Redis client initialized",
		zap.Strings("addrs", cfg.Addrs))
	return client, nil
}
