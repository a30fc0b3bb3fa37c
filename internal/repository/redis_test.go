package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/iliyamo/ticket-booking-core/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisSeatLockExclusive(t *testing.T) {
	mr, rdb := newRedis(t)
	lock := NewRedisSeatLock(rdb)
	ctx := context.Background()
	key := "lock:seat:1:S1"

	ok, err := lock.Acquire(ctx, key, "holder-a", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.Acquire(ctx, key, "holder-b", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "held lock cannot be re-acquired")
	assert.Equal(t, "holder-a", mustGet(t, mr, key))

	require.NoError(t, lock.Release(ctx, key))
	require.NoError(t, lock.Release(ctx, key), "release is idempotent")

	ok, err = lock.Acquire(ctx, key, "holder-b", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisSeatLockExpires(t *testing.T) {
	mr, rdb := newRedis(t)
	lock := NewRedisSeatLock(rdb)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "k", "a", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	ok, err = lock.Acquire(ctx, "k", "b", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock is free again")
}

func TestRedisSeatLockFailsClosed(t *testing.T) {
	mr, rdb := newRedis(t)
	lock := NewRedisSeatLock(rdb)
	mr.Close()

	ok, err := lock.Acquire(context.Background(), "k", "a", time.Second)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisSeatCache(t *testing.T) {
	mr, rdb := newRedis(t)
	cache := NewRedisSeatCache(rdb)
	ctx := context.Background()
	key := "avail:event:1"

	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	seats := []model.SeatAvailability{{SeatID: "S1", Section: "Floor", Row: 1, Number: 1, SeatType: "Standard", PriceCents: 5000, Available: true}}
	require.NoError(t, cache.Put(ctx, key, seats, 5*time.Second))

	got, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, seats, got)
	assert.Equal(t, 5*time.Second, mr.TTL(key))

	require.NoError(t, cache.Invalidate(ctx, key))
	_, ok, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, key, seats, 5*time.Second))
	mr.FastForward(6 * time.Second)
	_, ok, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "entries expire with their ttl")
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
