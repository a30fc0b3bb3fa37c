package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/ticket-booking-core/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisSeatCache stores seat inventory snapshots as JSON strings.  Put
// always overwrites; expiry is carried by the key TTL.
type RedisSeatCache struct {
	rdb *redis.Client
}

func NewRedisSeatCache(rdb *redis.Client) *RedisSeatCache { return &RedisSeatCache{rdb: rdb} }

// Get returns the cached snapshot.  ok is false on a miss.
func (c *RedisSeatCache) Get(ctx context.Context, key string) ([]model.SeatAvailability, bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var seats []model.SeatAvailability
	if err := json.Unmarshal(raw, &seats); err != nil {
		return nil, false, err
	}
	return seats, true, nil
}

func (c *RedisSeatCache) Put(ctx context.Context, key string, seats []model.SeatAvailability, ttl time.Duration) error {
	raw, err := json.Marshal(seats)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

func (c *RedisSeatCache) Invalidate(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}
