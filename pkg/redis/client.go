package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"intraportal/pkg/config"
)

// NewClient 创建 Redis 客户端并检查连通性
// Redis 只承担导入锁和消费去重，连不上时返回错误，由调用方决定是否降级
func NewClient(cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis ping failed", zap.String("addr", cfg.Addr), zap.Error(err))
		return rdb, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return rdb, nil
}
