package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) *Locker {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	return NewLocker(rdb, "test:lock:"+t.Name()+":")
}

func TestAcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := newTestLocker(t)

	token, ok, err := l.Acquire(ctx, "import", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = l.Acquire(ctx, "import", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, l.Release(ctx, "import", "someone-else"), ErrNotHeld)
	require.NoError(t, l.Release(ctx, "import", token))

	token, ok, err = l.Acquire(ctx, "import", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(ctx, "import", token))
}

func TestAcquireUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	l := NewLocker(rdb, "test:")

	_, ok, err := l.Acquire(context.Background(), "import", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}
