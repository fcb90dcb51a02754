package poller

import (
	"context"
	"time"

	"github.com/google/uuid"

	platformredis "refiling/internal/platform/redis"
)

// Locker serializes sweep invocations across processes. Per-row status guards
// already make overlapping sweeps safe; the lock just avoids wasted work.
type Locker interface {
	// Acquire returns held=false when another process owns the lock. The
	// release function is a no-op when the lock was not acquired.
	Acquire(ctx context.Context, key string, ttl time.Duration) (held bool, release func(), err error)
}

// RedisLocker implements Locker with SET NX and a TTL safety valve.
type RedisLocker struct {
	client *platformredis.Client
}

func NewRedisLocker(client *platformredis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, func() {}, err
	}
	if !ok {
		return false, func() {}, nil
	}
	release := func() {
		// Only delete if we still own the lock; if the TTL expired and
		// another process took over, leave its lock alone.
		current, err := l.client.Get(context.Background(), key).Result()
		if err != nil || current != token {
			return
		}
		l.client.Del(context.Background(), key)
	}
	return true, release, nil
}

// NoopLocker is used when Redis is not configured; single-process deployments
// rely on the per-row guards alone.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string, time.Duration) (bool, func(), error) {
	return true, func() {}, nil
}
