package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper 防止同一事件被同一个 handler 重复处理
type Deduper struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// AcquireOnce 首次处理返回 true，重复事件返回 false
// Redis 不可用时放行，handler 本身需要幂等
func (d *Deduper) AcquireOnce(ctx context.Context, handler string, id string) bool {
	key := fmt.Sprintf("dedup:%s:%s", handler, id)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("handler", handler),
			zap.String("id", id),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Skipped duplicated event",
			zap.String("handler", handler),
			zap.String("dedup_key", key),
		)
	}
	return ok
}

// Forget 删除去重标记，处理失败后调用以允许重投
func (d *Deduper) Forget(ctx context.Context, handler string, id string) {
	key := fmt.Sprintf("dedup:%s:%s", handler, id)
	if err := d.rdb.Del(ctx, key).Err(); err != nil {
		d.logger.Warn("Failed to clear dedup key", zap.String("dedup_key", key), zap.Error(err))
	}
}
