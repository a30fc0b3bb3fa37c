// Package memstore keeps every store contract in process memory.  It backs
// DB_DRIVER=memory local runs and the service and handler tests.  All
// state sits behind one mutex, so each method is atomic the way a single
// database transaction would be.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/ticket-booking-core/internal/model"
	"github.com/iliyamo/ticket-booking-core/internal/repository"
)

// Event is a bookable event on a venue.
type Event struct {
	ID             uint64
	VenueID        uint64
	Name           string
	StartsAt       time.Time
	BasePriceCents int64
}

// Section groups seats of a venue under one price multiplier.
type Section struct {
	ID                 uint64
	VenueID            uint64
	Name               string
	PriceMultiplierPct int64
}

// Seat is a physical seat.
type Seat struct {
	ID        string
	SectionID uint64
	Row       int
	Number    int
	SeatType  string
}

// Store is the in-memory durable store.
type Store struct {
	mu sync.Mutex

	users    map[uint64]*model.User
	tokens   map[uint64]*model.RefreshToken
	events   map[uint64]Event
	sections map[uint64]Section
	seats    map[string]Seat
	bookings map[uint64]*model.Booking
	requests map[requestKey]uint64 // idempotency key -> booking id

	nextUser, nextToken, nextBooking, nextTicket uint64
}

func New() *Store {
	return &Store{
		users:    map[uint64]*model.User{},
		tokens:   map[uint64]*model.RefreshToken{},
		events:   map[uint64]Event{},
		sections: map[uint64]Section{},
		seats:    map[string]Seat{},
		bookings: map[uint64]*model.Booking{},
		requests: map[requestKey]uint64{},
	}
}

type requestKey struct {
	userID uint64
	key    string
}

// AddEvent, AddSection and AddSeat seed inventory.
func (s *Store) AddEvent(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
}

func (s *Store) AddSection(sec Section) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections[sec.ID] = sec
}

func (s *Store) AddSeat(seat Seat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seats[seat.ID] = seat
}

// ---- users

func (s *Store) CreateUser(_ context.Context, u *model.User) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.users {
		if existing.Email == email {
			return 0, repository.ErrDuplicate
		}
	}
	s.nextUser++
	cp := *u
	cp.ID = s.nextUser
	cp.Email = email
	s.users[cp.ID] = &cp
	u.ID, u.Email = cp.ID, email
	return cp.ID, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) UserByID(_ context.Context, id uint64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) TouchLastLogin(_ context.Context, id uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		t := at
		u.LastLoginAt = &t
	}
	return nil
}

// SetActive flips a user's active flag.
func (s *Store) SetActive(id uint64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.IsActive = active
	}
}

// ---- refresh tokens

func (s *Store) insertTokenLocked(t *model.RefreshToken) (uint64, error) {
	for _, existing := range s.tokens {
		if existing.TokenHash == t.TokenHash {
			return 0, repository.ErrDuplicate
		}
	}
	s.nextToken++
	cp := *t
	cp.ID = s.nextToken
	cp.RevokedAt, cp.ReplacedBy = nil, nil
	s.tokens[cp.ID] = &cp
	t.ID = cp.ID
	return cp.ID, nil
}

func (s *Store) InsertToken(_ context.Context, t *model.RefreshToken) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertTokenLocked(t)
}

func (s *Store) TokenByHash(_ context.Context, hash string) (*model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ActiveTokens(_ context.Context, userID uint64) ([]model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.RefreshToken
	for _, t := range s.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) RevokeToken(_ context.Context, id uint64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok || t.RevokedAt != nil {
		return false, nil
	}
	ts := at
	t.RevokedAt = &ts
	return true, nil
}

func (s *Store) RevokeAllTokens(_ context.Context, userID uint64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, t := range s.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			ts := at
			t.RevokedAt = &ts
			n++
		}
	}
	return n, nil
}

func (s *Store) RotateToken(_ context.Context, oldID uint64, next *model.RefreshToken, at time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.tokens[oldID]
	if !ok || old.RevokedAt != nil {
		return 0, repository.ErrConflict
	}
	id, err := s.insertTokenLocked(next)
	if err != nil {
		return 0, err
	}
	ts := at
	old.RevokedAt = &ts
	old.ReplacedBy = &id
	return id, nil
}

// ---- inventory

func (s *Store) SeatPrices(_ context.Context, eventID uint64, seatIDs []string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := make(map[string]int64, len(seatIDs))
	for _, id := range seatIDs {
		seat, ok := s.seats[id]
		if !ok {
			continue
		}
		sec, ok := s.sections[seat.SectionID]
		if !ok || sec.VenueID != ev.VenueID {
			continue
		}
		out[id] = ev.BasePriceCents * sec.PriceMultiplierPct / 100
	}
	return out, nil
}

func (s *Store) OccupiedSeats(_ context.Context, eventID uint64, seatIDs []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.occupiedLocked(eventID, seatIDs), nil
}

func (s *Store) occupiedLocked(eventID uint64, seatIDs []string) []string {
	want := make(map[string]bool, len(seatIDs))
	for _, id := range seatIDs {
		want[id] = true
	}
	var taken []string
	for _, b := range s.bookings {
		if b.EventID != eventID || b.Status == model.BookingCancelled {
			continue
		}
		for _, t := range b.Tickets {
			if t.Status != model.TicketCancelled && want[t.SeatID] {
				taken = append(taken, t.SeatID)
				delete(want, t.SeatID)
			}
		}
	}
	sort.Strings(taken)
	return taken
}

func (s *Store) ListSeats(_ context.Context, eventID uint64) ([]model.SeatAvailability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	var ids []string
	out := []model.SeatAvailability{}
	for _, seat := range s.seats {
		sec, ok := s.sections[seat.SectionID]
		if !ok || sec.VenueID != ev.VenueID {
			continue
		}
		ids = append(ids, seat.ID)
		out = append(out, model.SeatAvailability{
			SeatID:     seat.ID,
			Section:    sec.Name,
			Row:        seat.Row,
			Number:     seat.Number,
			SeatType:   seat.SeatType,
			PriceCents: ev.BasePriceCents * sec.PriceMultiplierPct / 100,
			Available:  true,
		})
	}
	taken := map[string]bool{}
	for _, id := range s.occupiedLocked(eventID, ids) {
		taken[id] = true
	}
	for i := range out {
		out[i].Available = !taken[out[i].SeatID]
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		return a.SeatID < b.SeatID
	})
	return out, nil
}

// ---- bookings

func (s *Store) CommitBooking(_ context.Context, b *model.Booking, tickets []model.Ticket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seatIDs := make([]string, len(tickets))
	var added int64
	for i, t := range tickets {
		seatIDs[i] = t.SeatID
		added += t.PriceCents
	}
	if len(s.occupiedLocked(b.EventID, seatIDs)) > 0 {
		return repository.ErrConflict
	}
	rk := requestKey{b.UserID, key}
	if _, used := s.requests[rk]; key != "" && used {
		return repository.ErrDuplicate
	}

	var stored *model.Booking
	if b.ID == 0 {
		for _, other := range s.bookings {
			if other.Reference == b.Reference {
				return repository.ErrDuplicate
			}
			if b.IdempotencyKey != nil && other.UserID == b.UserID &&
				other.IdempotencyKey != nil && *other.IdempotencyKey == *b.IdempotencyKey {
				return repository.ErrDuplicate
			}
		}
		s.nextBooking++
		cp := *b
		cp.ID = s.nextBooking
		cp.TotalCents = added
		cp.Tickets = nil
		stored = &cp
		s.bookings[cp.ID] = stored
		b.ID = cp.ID
		b.TotalCents = added
	} else {
		var ok bool
		stored, ok = s.bookings[b.ID]
		if !ok || stored.Status == model.BookingCancelled {
			return repository.ErrConflict
		}
		stored.TotalCents += added
		stored.UpdatedAt = b.UpdatedAt
		b.TotalCents = stored.TotalCents
	}
	if key != "" {
		s.requests[rk] = b.ID
	}

	for i := range tickets {
		s.nextTicket++
		tickets[i].ID = s.nextTicket
		tickets[i].BookingID = b.ID
		tickets[i].EventID = b.EventID
		stored.Tickets = append(stored.Tickets, tickets[i])
	}
	b.Tickets = append(b.Tickets, tickets...)
	return nil
}

func (s *Store) bookingCopy(b *model.Booking) *model.Booking {
	cp := *b
	cp.Tickets = append([]model.Ticket(nil), b.Tickets...)
	return &cp
}

func (s *Store) BookingByReference(_ context.Context, reference string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.Reference == reference {
			return s.bookingCopy(b), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) BookingByIdempotencyKey(_ context.Context, userID uint64, key string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.requests[requestKey{userID, key}]; ok {
		return s.bookingCopy(s.bookings[id]), nil
	}
	return nil, repository.ErrNotFound
}

func (s *Store) CancelBooking(_ context.Context, bookingID uint64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok || b.Status == model.BookingCancelled {
		return false, nil
	}
	b.Status = model.BookingCancelled
	b.UpdatedAt = at
	for i := range b.Tickets {
		b.Tickets[i].Status = model.TicketCancelled
	}
	return true, nil
}
