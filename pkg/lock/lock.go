package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld 释放一个已过期或被他人持有的锁
var ErrNotHeld = errors.New("lock not held")

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 基于 SET NX PX 的短期互斥锁
type Locker struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewLocker(rdb redis.UniversalClient, prefix string) *Locker {
	return &Locker{rdb: rdb, prefix: prefix}
}

// Acquire 尝试获取 key 对应的锁；acquired 为 false 表示锁已被占用
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (token string, acquired bool, err error) {
	token = uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release 释放锁，token 必须是 Acquire 返回的值
func (l *Locker) Release(ctx context.Context, key, token string) error {
	n, err := releaseScript.Run(ctx, l.rdb, []string{l.prefix + key}, token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
