package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/iliyamo/ticket-booking-core/internal/config"
	"github.com/iliyamo/ticket-booking-core/internal/model"
	"github.com/iliyamo/ticket-booking-core/internal/queue"
	"github.com/iliyamo/ticket-booking-core/internal/repository"
	"github.com/iliyamo/ticket-booking-core/internal/repository/memstore"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testBookingConfig() config.BookingConfig {
	return config.BookingConfig{
		LockTTL:      10 * time.Second,
		LockRetries:  0,
		LockBackoff:  5 * time.Millisecond,
		LockPrefix:   "lock:seat",
		SeatCacheTTL: 5 * time.Second,
		CachePrefix:  "avail",
		StoreTimeout: 2 * time.Second,
	}
}

// seed creates event 1 (venue 1, base 5000): Floor S1..S4 at 100% and VIP V1 at 150%.
// Event 2 is on venue 2 with seat X1.
func seed(s *memstore.Store) {
	s.AddEvent(memstore.Event{ID: 1, VenueID: 1, Name: "Concert", BasePriceCents: 5000})
	s.AddEvent(memstore.Event{ID: 2, VenueID: 2, Name: "Play", BasePriceCents: 3000})
	s.AddSection(memstore.Section{ID: 1, VenueID: 1, Name: "Floor", PriceMultiplierPct: 100})
	s.AddSection(memstore.Section{ID: 2, VenueID: 1, Name: "VIP", PriceMultiplierPct: 150})
	s.AddSection(memstore.Section{ID: 3, VenueID: 2, Name: "Stalls", PriceMultiplierPct: 100})
	for i, id := range []string{"S1", "S2", "S3", "S4"} {
		s.AddSeat(memstore.Seat{ID: id, SectionID: 1, Row: 1, Number: i + 1, SeatType: "Standard"})
	}
	s.AddSeat(memstore.Seat{ID: "V1", SectionID: 2, Row: 1, Number: 1, SeatType: "VIP"})
	s.AddSeat(memstore.Seat{ID: "X1", SectionID: 3, Row: 1, Number: 1, SeatType: "Standard"})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []queue.BookingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.BookingEvent(nil), p.events...)
}

// countingInventory counts durable seat scans.
type countingInventory struct {
	InventoryStore
	mu    sync.Mutex
	lists int
}

func (c *countingInventory) ListSeats(ctx context.Context, eventID uint64) ([]model.SeatAvailability, error) {
	c.mu.Lock()
	c.lists++
	c.mu.Unlock()
	return c.InventoryStore.ListSeats(ctx, eventID)
}

func (c *countingInventory) Lists() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lists
}

// failingBookings fails every commit.
type failingBookings struct {
	BookingStore
}

func (failingBookings) CommitBooking(context.Context, *model.Booking, []model.Ticket, string) error {
	return errors.New("connection reset")
}

type bookingFixture struct {
	store *memstore.Store
	lock  ReservationLock
	cache *memstore.Cache
	inv   *countingInventory
	avail *SeatAvailability
	pub   *recordingPublisher
	svc   *BookingService
	mr    *miniredis.Miniredis
}

// newBookingFixture wires the booking service over memstore with a Redis
// lock served by miniredis.
func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	store := memstore.New()
	seed(store)
	cfg := testBookingConfig()
	inv := &countingInventory{InventoryStore: store}
	cache := memstore.NewCache(nil)
	avail := NewSeatAvailability(inv, cache, cfg, nil)
	pub := &recordingPublisher{}
	lock := repository.NewRedisSeatLock(rdb)
	return &bookingFixture{
		store: store,
		lock:  lock,
		cache: cache,
		inv:   inv,
		avail: avail,
		pub:   pub,
		svc:   NewBookingService(lock, inv, store, avail, pub, cfg, nil),
		mr:    mr,
	}
}

func newAuthFixture(t *testing.T) (*AuthService, *memstore.Store, *clock) {
	t.Helper()
	store := memstore.New()
	clk := newClock()
	svc := NewAuthService(store, store, AuthConfig{
		Secret:     "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		BcryptCost: bcrypt.MinCost,
		MaxDevices: 5,
	}, nil)
	svc.now = clk.Now
	return svc, store, clk
}

var alice = model.Principal{UserID: 1, Role: model.RoleCustomer}
var bob = model.Principal{UserID: 2, Role: model.RoleCustomer}
var admin = model.Principal{UserID: 99, Role: model.RoleAdmin}
