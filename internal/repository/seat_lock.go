package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSeatLock is the per-seat mutual exclusion primitive backed by
// Redis.  Acquire is a single SET NX PX, so two processes can never both
// observe the key as free.
type RedisSeatLock struct {
	rdb *redis.Client
}

func NewRedisSeatLock(rdb *redis.Client) *RedisSeatLock { return &RedisSeatLock{rdb: rdb} }

// Acquire sets key to holder with the given expiry only if key is absent.
// A store error is returned as-is and must be treated as not acquired.
func (l *RedisSeatLock) Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, key, holder, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Release deletes key unconditionally.  Releasing an expired key is a no-op.
func (l *RedisSeatLock) Release(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, key).Err()
}
