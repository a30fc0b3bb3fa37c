package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/ticket-booking-core/internal/config"
	"github.com/iliyamo/ticket-booking-core/internal/model"
	"github.com/iliyamo/ticket-booking-core/internal/queue"
	"github.com/iliyamo/ticket-booking-core/internal/repository"
	"github.com/iliyamo/ticket-booking-core/internal/utils"
	"go.uber.org/zap"
)

const (
	// MaxSeatsPerRequest caps how many seats one booking request may name.
	MaxSeatsPerRequest = 10
	maxIdempotencyKey  = 128
	referenceAttempts  = 5
)

var seatIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{0,63}$`)

// BookingRequest asks for one or more seats of a single event.
type BookingRequest struct {
	EventID uint64
	SeatIDs []string
	// BookingReference, if set, extends that booking instead of creating one.
	BookingReference string
	// IdempotencyKey makes a retried request return the booking it created.
	IdempotencyKey string
}

// BookingService runs the reservation workflow:
//
//	Requested -> LockAcquired -> Verified -> Committed -> LockReleased
//
// Locks are per seat, so bookings for different seats run in parallel.
// Occupancy is always re-read from the durable store inside the lock;
// the availability cache is only invalidated, never consulted.
type BookingService struct {
	lock      ReservationLock
	inventory InventoryStore
	bookings  BookingStore
	avail     *SeatAvailability
	pub       queue.Publisher
	cfg       config.BookingConfig
	log       *zap.Logger
	now       func() time.Time
}

func NewBookingService(lock ReservationLock, inventory InventoryStore, bookings BookingStore,
	avail *SeatAvailability, pub queue.Publisher, cfg config.BookingConfig, log *zap.Logger) *BookingService {
	if log == nil {
		log = zap.NewNop()
	}
	if pub == nil {
		pub = queue.NopPublisher{}
	}
	return &BookingService{
		lock:      lock,
		inventory: inventory,
		bookings:  bookings,
		avail:     avail,
		pub:       pub,
		cfg:       cfg,
		log:       log.Named("booking"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// LockKey is the lock key of one seat for one event.
func (s *BookingService) LockKey(eventID uint64, seatID string) string {
	return fmt.Sprintf("%s:%d:%s", s.cfg.LockPrefix, eventID, seatID)
}

// Book reserves the requested seats for p.  It returns the confirmed
// booking, or a classified error: InvalidRequest, Contention
// (ErrSeatContended / ErrLockUnavailable), Conflict (ErrSeatAlreadyBooked),
// NotFound or Unavailable.  No partial state is written on rejection.
func (s *BookingService) Book(ctx context.Context, p model.Principal, req BookingRequest) (*model.Booking, error) {
	seats, err := s.validate(p, req)
	if err != nil {
		s.reject(req, "", err)
		return nil, err
	}

	b, created, err := s.reserve(ctx, p, req, seats)
	if err != nil {
		s.reject(req, strings.Join(seats, ","), err)
		return nil, err
	}
	if !created {
		return b, nil
	}

	// Locks are already released; refresh the listing and announce.
	s.avail.Invalidate(ctx, req.EventID)
	s.publish(ctx, queue.BookingConfirmed, b, seats)
	s.log.Info("booking confirmed",
		zap.String("reference", b.Reference),
		zap.Uint64("user_id", p.UserID),
		zap.Uint64("event_id", req.EventID),
		zap.Strings("seats", seats))
	return b, nil
}

func (s *BookingService) validate(p model.Principal, req BookingRequest) ([]string, error) {
	if p.UserID == 0 {
		return nil, ErrForbidden
	}
	if req.EventID == 0 {
		return nil, fmt.Errorf("%w: event id", ErrInvalidRequest)
	}
	if n := len(req.SeatIDs); n == 0 || n > MaxSeatsPerRequest {
		return nil, fmt.Errorf("%w: between 1 and %d seats required", ErrInvalidRequest, MaxSeatsPerRequest)
	}
	if len(req.IdempotencyKey) > maxIdempotencyKey {
		return nil, fmt.Errorf("%w: idempotency key too long", ErrInvalidRequest)
	}
	seen := make(map[string]bool, len(req.SeatIDs))
	seats := make([]string, 0, len(req.SeatIDs))
	for _, id := range req.SeatIDs {
		id = strings.TrimSpace(id)
		if !seatIDPattern.MatchString(id) {
			return nil, fmt.Errorf("%w: malformed seat id %q", ErrInvalidRequest, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate seat id %q", ErrInvalidRequest, id)
		}
		seen[id] = true
		seats = append(seats, id)
	}
	// A fixed acquisition order keeps two multi-seat requests from
	// each holding a lock the other needs.
	sort.Strings(seats)
	return seats, nil
}

// reserve runs everything between LockAcquired and LockReleased.  The
// deferred release runs on every path, including a failed commit.
func (s *BookingService) reserve(ctx context.Context, p model.Principal, req BookingRequest, seats []string) (*model.Booking, bool, error) {
	holder := utils.NewHolderToken()
	held := make([]string, 0, len(seats))
	defer func() { s.releaseAll(ctx, held) }()

	for _, seat := range seats {
		key := s.LockKey(req.EventID, seat)
		if err := s.acquire(ctx, key, holder); err != nil {
			return nil, false, err
		}
		held = append(held, key)
	}

	sctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	if req.IdempotencyKey != "" {
		prev, err := s.bookings.BookingByIdempotencyKey(sctx, p.UserID, req.IdempotencyKey)
		switch {
		case err == nil:
			return prev, false, nil
		case !errors.Is(err, repository.ErrNotFound):
			return nil, false, s.storeErr("idempotency lookup", err)
		}
	}

	prices, err := s.inventory.SeatPrices(sctx, req.EventID, seats)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: event %d", ErrNotFound, req.EventID)
	}
	if err != nil {
		return nil, false, s.storeErr("seat prices", err)
	}
	for _, seat := range seats {
		if _, ok := prices[seat]; !ok {
			return nil, false, fmt.Errorf("%w: seat %s is not part of event %d", ErrInvalidRequest, seat, req.EventID)
		}
	}

	// Verified: durable re-check, never the cache.
	taken, err := s.inventory.OccupiedSeats(sctx, req.EventID, seats)
	if err != nil {
		return nil, false, s.storeErr("occupancy check", err)
	}
	if len(taken) > 0 {
		return nil, false, fmt.Errorf("%w: %s", ErrSeatAlreadyBooked, strings.Join(taken, ","))
	}

	b, err := s.target(sctx, p, req)
	if err != nil {
		return nil, false, err
	}
	now := s.now()
	tickets := make([]model.Ticket, len(seats))
	for i, seat := range seats {
		tickets[i] = model.Ticket{
			SeatID:         seat,
			PriceCents:     prices[seat],
			ValidationCode: utils.NewValidationCode(),
			Status:         model.TicketValid,
			CreatedAt:      now,
		}
	}

	if err := s.commit(sctx, p, req, b, tickets); err != nil {
		if errors.Is(err, errReplay) {
			prev, lerr := s.bookings.BookingByIdempotencyKey(sctx, p.UserID, req.IdempotencyKey)
			if lerr != nil {
				return nil, false, s.storeErr("idempotency lookup", lerr)
			}
			return prev, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// target returns the booking to extend or a fresh one to insert.
func (s *BookingService) target(ctx context.Context, p model.Principal, req BookingRequest) (*model.Booking, error) {
	now := s.now()
	if req.BookingReference == "" {
		ref, err := utils.NewBookingReference(now)
		if err != nil {
			return nil, err
		}
		b := &model.Booking{
			UserID:    p.UserID,
			EventID:   req.EventID,
			Status:    model.BookingConfirmed,
			Reference: ref,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			b.IdempotencyKey = &key
		}
		return b, nil
	}

	b, err := s.bookings.BookingByReference(ctx, req.BookingReference)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, req.BookingReference)
	}
	if err != nil {
		return nil, s.storeErr("booking lookup", err)
	}
	if b.UserID != p.UserID {
		return nil, ErrForbidden
	}
	if b.EventID != req.EventID || b.Status == model.BookingCancelled {
		return nil, fmt.Errorf("%w: booking %s cannot be extended for event %d", ErrInvalidRequest, b.Reference, req.EventID)
	}
	b.UpdatedAt = now
	return b, nil
}

var errReplay = errors.New("idempotency key already used")

// commit writes the booking, regenerating the reference on collision.
// A duplicate whose idempotency key now resolves means a concurrent copy
// of this request won, for a new booking and an extension alike.
func (s *BookingService) commit(ctx context.Context, p model.Principal, req BookingRequest, b *model.Booking, tickets []model.Ticket) error {
	for attempt := 1; ; attempt++ {
		err := s.bookings.CommitBooking(ctx, b, tickets, req.IdempotencyKey)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrConflict):
			return fmt.Errorf("%w: seat taken during commit", ErrSeatAlreadyBooked)
		case errors.Is(err, repository.ErrDuplicate):
			if req.IdempotencyKey != "" {
				if _, lerr := s.bookings.BookingByIdempotencyKey(ctx, p.UserID, req.IdempotencyKey); lerr == nil {
					return errReplay
				}
			}
			if b.ID != 0 || attempt >= referenceAttempts {
				return s.storeErr("commit", err)
			}
			ref, rerr := utils.NewBookingReference(b.CreatedAt)
			if rerr != nil {
				return rerr
			}
			s.log.Debug("booking reference collision", zap.String("reference", b.Reference))
			b.Reference = ref
		default:
			return s.storeErr("commit", err)
		}
	}
}

// acquire takes one seat lock with a short bounded retry.  A held lock
// ends in ErrSeatContended; a lock store failure fails closed with
// ErrLockUnavailable.
func (s *BookingService) acquire(ctx context.Context, key, holder string) error {
	backoff := s.cfg.LockBackoff
	for attempt := 0; ; attempt++ {
		lctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
		ok, err := s.lock.Acquire(lctx, key, holder, s.cfg.LockTTL)
		cancel()
		if err != nil {
			s.log.Error("lock store unavailable", zap.String("key", key), zap.Error(err))
			return fmt.Errorf("%w: %v", ErrLockUnavailable, err)
		}
		if ok {
			return nil
		}
		if attempt >= s.cfg.LockRetries {
			return ErrSeatContended
		}
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ErrSeatContended
		case <-t.C:
		}
		backoff *= 2
	}
}

// releaseAll drops every held lock.  It runs detached from ctx so a
// cancelled request still releases what it took.
func (s *BookingService) releaseAll(ctx context.Context, held []string) {
	if len(held) == 0 {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StoreTimeout)
	defer cancel()
	for _, key := range held {
		if err := s.lock.Release(rctx, key); err != nil {
			// The key still expires with LockTTL.
			s.log.Warn("lock release failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// Get returns a booking visible to p (its owner or an admin).
func (s *BookingService) Get(ctx context.Context, p model.Principal, reference string) (*model.Booking, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, fmt.Errorf("%w: booking reference", ErrInvalidRequest)
	}
	sctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	b, err := s.bookings.BookingByReference(sctx, reference)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, reference)
	}
	if err != nil {
		return nil, s.storeErr("booking lookup", err)
	}
	if b.UserID != p.UserID && !p.IsAdmin() {
		return nil, ErrForbidden
	}
	return b, nil
}

// Cancel cancels a booking and all its tickets, freeing the seats.
// Cancelling an already cancelled booking returns it unchanged.
func (s *BookingService) Cancel(ctx context.Context, p model.Principal, reference string) (*model.Booking, error) {
	b, err := s.Get(ctx, p, reference)
	if err != nil {
		return nil, err
	}
	if b.Status == model.BookingCancelled {
		return b, nil
	}

	sctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	now := s.now()
	changed, err := s.bookings.CancelBooking(sctx, b.ID, now)
	if err != nil {
		return nil, s.storeErr("cancel", err)
	}
	b.Status = model.BookingCancelled
	b.UpdatedAt = now
	for i := range b.Tickets {
		b.Tickets[i].Status = model.TicketCancelled
	}
	if !changed {
		return b, nil
	}

	seats := make([]string, len(b.Tickets))
	for i, t := range b.Tickets {
		seats[i] = t.SeatID
	}
	s.avail.Invalidate(ctx, b.EventID)
	s.publish(ctx, queue.BookingCancelled, b, seats)
	s.log.Info("booking cancelled", zap.String("reference", b.Reference), zap.Uint64("by_user_id", p.UserID))
	return b, nil
}

func (s *BookingService) publish(ctx context.Context, typ string, b *model.Booking, seats []string) {
	ev := queue.BookingEvent{
		Type:       typ,
		Reference:  b.Reference,
		UserID:     b.UserID,
		EventID:    b.EventID,
		Seats:      seats,
		TotalCents: b.TotalCents,
		OccurredAt: s.now().Format(time.RFC3339),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StoreTimeout)
	defer cancel()
	if err := s.pub.Publish(pctx, ev); err != nil {
		s.log.Warn("event publish failed", zap.String("type", typ), zap.String("reference", b.Reference), zap.Error(err))
	}
}

func (s *BookingService) reject(req BookingRequest, seats string, err error) {
	s.log.Info("booking rejected",
		zap.Uint64("event_id", req.EventID),
		zap.String("seat_id", seats),
		zap.String("reason", AsError(err).Code),
		zap.Error(err))
}

func (s *BookingService) storeErr(op string, err error) error {
	s.log.Error("durable store failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
