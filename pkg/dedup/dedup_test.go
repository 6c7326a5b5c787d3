package dedup

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestAcquireOnce(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	d := NewDeduper(rdb, time.Minute, zaptest.NewLogger(t))
	id := t.Name() + time.Now().Format(time.RFC3339Nano)

	assert.True(t, d.AcquireOnce(ctx, "project.imported", id))
	assert.False(t, d.AcquireOnce(ctx, "project.imported", id))
	assert.True(t, d.AcquireOnce(ctx, "other.handler", id))

	d.Forget(ctx, "project.imported", id)
	assert.True(t, d.AcquireOnce(ctx, "project.imported", id))
}

func TestAcquireOnceFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	d := NewDeduper(rdb, time.Minute, zaptest.NewLogger(t))

	assert.True(t, d.AcquireOnce(context.Background(), "project.imported", "1"))
	assert.True(t, d.AcquireOnce(context.Background(), "project.imported", "1"))
}
