package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes short critical sections keyed by name. The round-robin
// strategy uses it to narrow cursor CAS contention across engine instances;
// correctness never depends on the lock, only on the database CAS.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

const lockRetryDelay = 20 * time.Millisecond

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker implements Locker with SET NX PX and a token-checked unlock.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker builds a locker on the shared client.
func NewRedisLocker(r *Redis, ttl time.Duration) *RedisLocker {
	if r == nil || r.Client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &RedisLocker{client: r.Client, ttl: ttl}
}

// WithLock runs fn while holding the named lock. If the lock cannot be
// acquired before the TTL elapses, fn runs anyway: the caller's CAS is the
// actual serialization point and skipping the lock only widens retry churn.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if l == nil {
		return fn(ctx)
	}

	token := uuid.NewString()
	deadline := time.Now().Add(l.ttl)
	acquired := false

	for time.Now().Before(deadline) {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil || ok {
			acquired = ok
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}

	defer func() {
		if acquired {
			_ = unlockScript.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Err()
		}
	}()

	return fn(ctx)
}
