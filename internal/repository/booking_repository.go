package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/ticket-booking-core/internal/model"
)

// BookingRepo provides the booking commit path and booking lookups.
// Bookings group one or more tickets for a single event and user.  All
// timestamps are supplied by the caller in UTC.
type BookingRepo struct {
	db       *sql.DB
	rowLocks bool
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo {
	return &BookingRepo{db: db, rowLocks: isMySQL(db)}
}

const bookingColumns = `id, user_id, event_id, total_cents, status, reference, idempotency_key, created_at, updated_at`

// CommitBooking writes b and its new tickets all-or-nothing.  When b.ID
// is zero a new booking row is inserted (ErrDuplicate on a reference
// collision); otherwise the existing booking is extended and its total
// raised, failing with ErrConflict if it was cancelled.  A non-empty key
// is recorded against the booking for the user, so a retried request can
// find it again whether it created or extended the booking; reusing a key
// fails with ErrDuplicate.  Any ticket whose seat is already taken for
// the event aborts the whole commit with ErrConflict.  On success b is
// updated in place; on failure b is left untouched.
func (r *BookingRepo) CommitBooking(ctx context.Context, b *model.Booking, tickets []model.Ticket, key string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	seatIDs := make([]string, len(tickets))
	var added int64
	for i, t := range tickets {
		seatIDs[i] = t.SeatID
		added += t.PriceCents
	}
	if len(seatIDs) > 0 {
		if err := r.lockSeats(ctx, tx, seatIDs); err != nil {
			return err
		}
		taken, err := occupied(ctx, tx, b.EventID, seatIDs)
		if err != nil {
			return err
		}
		if len(taken) > 0 {
			return ErrConflict
		}
	}

	id, total := b.ID, b.TotalCents+added
	if id == 0 {
		total = added
		res, err := tx.ExecContext(ctx,
			`INSERT INTO bookings (user_id, event_id, total_cents, status, reference, idempotency_key, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.UserID, b.EventID, total, b.Status, b.Reference, b.IdempotencyKey, b.CreatedAt, b.UpdatedAt)
		if err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicate
			}
			return err
		}
		last, err := res.LastInsertId()
		if err != nil {
			return err
		}
		id = uint64(last)
	} else {
		res, err := tx.ExecContext(ctx,
			`UPDATE bookings SET total_cents = total_cents + ?, updated_at = ? WHERE id = ? AND status <> 'Cancelled'`,
			added, b.UpdatedAt, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n != 1 {
			return ErrConflict
		}
	}

	ticketIDs := make([]uint64, len(tickets))
	for i, t := range tickets {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO tickets (booking_id, event_id, seat_id, price_cents, validation_code, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, b.EventID, t.SeatID, t.PriceCents, t.ValidationCode, t.Status, t.CreatedAt)
		if err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicate
			}
			return err
		}
		last, err := res.LastInsertId()
		if err != nil {
			return err
		}
		ticketIDs[i] = uint64(last)
	}

	if key != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO booking_requests (user_id, idempotency_key, booking_id, created_at) VALUES (?, ?, ?, ?)`,
			b.UserID, key, id, b.UpdatedAt); err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicate
			}
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	b.ID, b.TotalCents = id, total
	for i := range tickets {
		tickets[i].ID = ticketIDs[i]
		tickets[i].BookingID = id
		tickets[i].EventID = b.EventID
	}
	b.Tickets = append(b.Tickets, tickets...)
	return nil
}

// lockSeats takes row locks on the seats being sold so two commits for
// the same seat serialise even when the reservation lock was lost; the
// occupancy read that follows then sees the winner's tickets.  SQLite
// has no row locks and serialises writers on its own.
func (r *BookingRepo) lockSeats(ctx context.Context, tx *sql.Tx, seatIDs []string) error {
	if !r.rowLocks {
		return nil
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM seats WHERE id IN (`+placeholders(len(seatIDs))+`) ORDER BY id FOR UPDATE`,
		stringArgs(seatIDs)...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

// BookingByReference loads a booking and its tickets.
func (r *BookingRepo) BookingByReference(ctx context.Context, reference string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE reference = ?`, reference)
	return r.loadBooking(ctx, row)
}

// BookingByIdempotencyKey loads the booking a user's request with key
// created or extended.
func (r *BookingRepo) BookingByIdempotencyKey(ctx context.Context, userID uint64, key string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+prefixed("b", bookingColumns)+`
		 FROM booking_requests r JOIN bookings b ON b.id = r.booking_id
		 WHERE r.user_id = ? AND r.idempotency_key = ?`, userID, key)
	return r.loadBooking(ctx, row)
}

// CancelBooking marks a booking and its tickets Cancelled in one
// transaction, freeing the seats.  It reports false when the booking was
// already cancelled.
func (r *BookingRepo) CancelBooking(ctx context.Context, bookingID uint64, at time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = 'Cancelled', updated_at = ? WHERE id = ? AND status <> 'Cancelled'`,
		at, bookingID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status = 'Cancelled' WHERE booking_id = ? AND status <> 'Cancelled'`,
		bookingID); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}

// prefixed qualifies every column in a comma separated list with alias.
func prefixed(alias, cols string) string {
	parts := strings.Split(cols, ", ")
	for i, c := range parts {
		parts[i] = alias + "." + c
	}
	return strings.Join(parts, ", ")
}

func (r *BookingRepo) loadBooking(ctx context.Context, row *sql.Row) (*model.Booking, error) {
	var (
		b   model.Booking
		key sql.NullString
	)
	err := row.Scan(&b.ID, &b.UserID, &b.EventID, &b.TotalCents, &b.Status, &b.Reference, &key, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if key.Valid {
		b.IdempotencyKey = &key.String
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, booking_id, event_id, seat_id, price_cents, validation_code, status, created_at
		 FROM tickets WHERE booking_id = ? ORDER BY id`, b.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.BookingID, &t.EventID, &t.SeatID, &t.PriceCents, &t.ValidationCode, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		b.Tickets = append(b.Tickets, t)
	}
	return &b, rows.Err()
}
