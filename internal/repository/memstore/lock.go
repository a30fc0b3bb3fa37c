package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/ticket-booking-core/internal/model"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// kv is a tiny expiring key/value map shared by Lock and Cache.
type kv struct {
	mu   sync.Mutex
	now  func() time.Time
	data map[string]entry
}

func newKV(now func() time.Time) *kv {
	if now == nil {
		now = time.Now
	}
	return &kv{now: now, data: map[string]entry{}}
}

func (m *kv) getLocked(key string) (entry, bool) {
	e, ok := m.data[key]
	if !ok {
		return entry{}, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.data, key)
		return entry{}, false
	}
	return e, true
}

// Lock is an in-process ReservationLock.  It only excludes callers within
// one process, which is what DB_DRIVER=memory runs are.
type Lock struct{ kv *kv }

// NewLock returns a Lock reading expiry against now (time.Now if nil).
func NewLock(now func() time.Time) *Lock { return &Lock{kv: newKV(now)} }

func (l *Lock) Acquire(_ context.Context, key, holder string, ttl time.Duration) (bool, error) {
	l.kv.mu.Lock()
	defer l.kv.mu.Unlock()
	if _, held := l.kv.getLocked(key); held {
		return false, nil
	}
	l.kv.data[key] = entry{value: holder, expiresAt: l.kv.now().Add(ttl)}
	return true, nil
}

func (l *Lock) Release(_ context.Context, key string) error {
	l.kv.mu.Lock()
	defer l.kv.mu.Unlock()
	delete(l.kv.data, key)
	return nil
}

// Holder returns the current holder of key, if any.
func (l *Lock) Holder(key string) (string, bool) {
	l.kv.mu.Lock()
	defer l.kv.mu.Unlock()
	e, ok := l.kv.getLocked(key)
	if !ok {
		return "", false
	}
	return e.value.(string), true
}

// Cache is an in-process AvailabilityCache.
type Cache struct{ kv *kv }

func NewCache(now func() time.Time) *Cache { return &Cache{kv: newKV(now)} }

func (c *Cache) Get(_ context.Context, key string) ([]model.SeatAvailability, bool, error) {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()
	e, ok := c.kv.getLocked(key)
	if !ok {
		return nil, false, nil
	}
	seats := e.value.([]model.SeatAvailability)
	return append([]model.SeatAvailability(nil), seats...), true, nil
}

func (c *Cache) Put(_ context.Context, key string, seats []model.SeatAvailability, ttl time.Duration) error {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()
	c.kv.data[key] = entry{value: append([]model.SeatAvailability(nil), seats...), expiresAt: c.kv.now().Add(ttl)}
	return nil
}

func (c *Cache) Invalidate(_ context.Context, key string) error {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()
	delete(c.kv.data, key)
	return nil
}
