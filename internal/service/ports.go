package service

import (
	"context"
	"time"

	"github.com/iliyamo/ticket-booking-core/internal/model"
)

// ReservationLock is distributed mutual exclusion keyed by seat.  Acquire
// must be a single atomic set-if-absent with expiry; an error means the
// lock was not granted.  Release is unconditional and idempotent.
type ReservationLock interface {
	Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// AvailabilityCache holds seat snapshots.  It is advisory only.
type AvailabilityCache interface {
	Get(ctx context.Context, key string) ([]model.SeatAvailability, bool, error)
	Put(ctx context.Context, key string, seats []model.SeatAvailability, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// InventoryStore reads seats and their occupancy from the durable store.
type InventoryStore interface {
	SeatPrices(ctx context.Context, eventID uint64, seatIDs []string) (map[string]int64, error)
	OccupiedSeats(ctx context.Context, eventID uint64, seatIDs []string) ([]string, error)
	ListSeats(ctx context.Context, eventID uint64) ([]model.SeatAvailability, error)
}

// BookingStore is the durable booking commit path.  CommitBooking records
// a non-empty idempotency key against the booking it creates or extends;
// BookingByIdempotencyKey finds it by that key.
type BookingStore interface {
	CommitBooking(ctx context.Context, b *model.Booking, tickets []model.Ticket, key string) error
	BookingByReference(ctx context.Context, reference string) (*model.Booking, error)
	BookingByIdempotencyKey(ctx context.Context, userID uint64, key string) (*model.Booking, error)
	CancelBooking(ctx context.Context, bookingID uint64, at time.Time) (bool, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) (uint64, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id uint64) (*model.User, error)
	TouchLastLogin(ctx context.Context, id uint64, at time.Time) error
}

// TokenStore persists refresh-token records.  RotateToken must revoke the
// old record with a compare-and-set and fail with repository.ErrConflict
// when it lost.
type TokenStore interface {
	InsertToken(ctx context.Context, t *model.RefreshToken) (uint64, error)
	TokenByHash(ctx context.Context, hash string) (*model.RefreshToken, error)
	ActiveTokens(ctx context.Context, userID uint64) ([]model.RefreshToken, error)
	RevokeToken(ctx context.Context, id uint64, at time.Time) (bool, error)
	RevokeAllTokens(ctx context.Context, userID uint64, at time.Time) (int64, error)
	RotateToken(ctx context.Context, oldID uint64, next *model.RefreshToken, at time.Time) (uint64, error)
}
