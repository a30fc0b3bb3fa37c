package model

import "time"

// Booking statuses.
const (
	BookingPending   = "Pending"
	BookingConfirmed = "Confirmed"
	BookingCancelled = "Cancelled"
)

// Ticket statuses.
const (
	TicketValid     = "Valid"
	TicketUsed      = "Used"
	TicketCancelled = "Cancelled"
)

// Booking records a user's purchase for a specific event.  It
// aggregates one or more tickets committed in a single transaction.
//
// Fields:
//  ID             – primary key identifier.
//  UserID         – user who made the booking.
//  EventID        – event being booked.
//  TotalCents     – sum of ticket prices in cents.
//  Status         – Pending, Confirmed or Cancelled.
//  Reference      – globally unique human readable code (BK-2025-ABC123).
//  IdempotencyKey – optional client key, unique per user.
//  Tickets        – tickets loaded with the booking (may be empty).
type Booking struct {
	ID             uint64    // bookings.id
	UserID         uint64    // bookings.user_id
	EventID        uint64    // bookings.event_id
	TotalCents     int64     // bookings.total_cents
	Status         string    // bookings.status
	Reference      string    // bookings.reference
	IdempotencyKey *string   // bookings.idempotency_key (nullable)
	CreatedAt      time.Time // bookings.created_at
	UpdatedAt      time.Time // bookings.updated_at
	Tickets        []Ticket
}

// Ticket is the sole evidence of seat occupancy for an event.  A seat is
// occupied while a non-cancelled ticket of a non-cancelled booking
// references it.
type Ticket struct {
	ID             uint64    // tickets.id
	BookingID      uint64    // tickets.booking_id
	EventID        uint64    // tickets.event_id
	SeatID         string    // tickets.seat_id
	PriceCents     int64     // tickets.price_cents
	ValidationCode string    // tickets.validation_code
	Status         string    // tickets.status
	CreatedAt      time.Time // tickets.created_at
}
