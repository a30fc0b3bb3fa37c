package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/ticket-booking-core/internal/config"
	"github.com/iliyamo/ticket-booking-core/internal/model"
	"github.com/iliyamo/ticket-booking-core/internal/repository"
	"go.uber.org/zap"
)

// SeatAvailability serves the seat listing of an event through a
// read-through cache.  The snapshot it returns is advisory: bookings
// never consult it.
type SeatAvailability struct {
	store InventoryStore
	cache AvailabilityCache
	cfg   config.BookingConfig
	log   *zap.Logger
}

func NewSeatAvailability(store InventoryStore, cache AvailabilityCache, cfg config.BookingConfig, log *zap.Logger) *SeatAvailability {
	if log == nil {
		log = zap.NewNop()
	}
	return &SeatAvailability{store: store, cache: cache, cfg: cfg, log: log.Named("availability")}
}

// Key is the cache key of an event's snapshot.
func (a *SeatAvailability) Key(eventID uint64) string {
	return fmt.Sprintf("%s:event:%d", a.cfg.CachePrefix, eventID)
}

// List returns the event's seats.  A cache hit is returned as-is; a miss
// (or an unreachable cache) scans the durable store and repopulates the
// cache for SeatCacheTTL.
func (a *SeatAvailability) List(ctx context.Context, eventID uint64) ([]model.SeatAvailability, error) {
	if eventID == 0 {
		return nil, fmt.Errorf("%w: event id", ErrInvalidRequest)
	}
	key := a.Key(eventID)

	cctx, cancel := context.WithTimeout(ctx, a.cfg.StoreTimeout)
	seats, hit, err := a.cache.Get(cctx, key)
	cancel()
	if err != nil {
		a.log.Warn("cache read failed; falling back to store", zap.String("key", key), zap.Error(err))
	} else if hit {
		return seats, nil
	}

	sctx, cancel := context.WithTimeout(ctx, a.cfg.StoreTimeout)
	defer cancel()
	seats, err = a.store.ListSeats(sctx, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: event %d", ErrNotFound, eventID)
	}
	if err != nil {
		a.log.Error("seat listing failed", zap.Uint64("event_id", eventID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := a.cache.Put(sctx, key, seats, a.cfg.SeatCacheTTL); err != nil {
		a.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return seats, nil
}

// Invalidate drops the event's snapshot so the next List re-reads the
// store.  Failure is logged only; the entry still expires with its ttl.
func (a *SeatAvailability) Invalidate(ctx context.Context, eventID uint64) {
	key := a.Key(eventID)
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.StoreTimeout)
	defer cancel()
	if err := a.cache.Invalidate(cctx, key); err != nil {
		a.log.Warn("cache invalidate failed", zap.String("key", key), zap.Error(err))
	}
}
