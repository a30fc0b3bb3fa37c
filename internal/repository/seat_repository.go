package repository // repository defines data access for seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"errors"
	"strings"

	"github.com/iliyamo/ticket-booking-core/internal/model"
)

// SeatRepo reads the seat inventory of an event.  A seat belongs to an
// event when its section is in the event's venue.  Occupancy is never a
// stored flag: a seat is taken while a non-cancelled ticket of a
// non-cancelled booking references it for that event.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

const activeTicketPredicate = `t.status <> 'Cancelled' AND b.status <> 'Cancelled'`

// basePrice returns the event's base price or ErrNotFound.
func (r *SeatRepo) basePrice(ctx context.Context, eventID uint64) (int64, error) {
	var base int64
	err := r.db.QueryRowContext(ctx,
		`SELECT base_price_cents FROM events WHERE id = ?`, eventID).Scan(&base)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return base, err
}

// SeatPrices prices the given seats for an event (base price scaled by the
// section multiplier).  Seats outside the event's venue are absent from
// the result; an unknown event yields ErrNotFound.
func (r *SeatRepo) SeatPrices(ctx context.Context, eventID uint64, seatIDs []string) (map[string]int64, error) {
	base, err := r.basePrice(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(seatIDs))
	if len(seatIDs) == 0 {
		return out, nil
	}
	q := `SELECT s.id, sec.price_multiplier_pct
	      FROM seats s
	      JOIN sections sec ON sec.id = s.section_id
	      JOIN events e ON e.venue_id = sec.venue_id
	      WHERE e.id = ? AND s.id IN (` + placeholders(len(seatIDs)) + `)`
	rows, err := r.db.QueryContext(ctx, q, append([]any{eventID}, stringArgs(seatIDs)...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  string
			pct int64
		)
		if err := rows.Scan(&id, &pct); err != nil {
			return nil, err
		}
		out[id] = base * pct / 100
	}
	return out, rows.Err()
}

// OccupiedSeats returns which of seatIDs are held by an active ticket for
// the event.  It always reads the durable store.
func (r *SeatRepo) OccupiedSeats(ctx context.Context, eventID uint64, seatIDs []string) ([]string, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	return occupied(ctx, r.db, eventID, seatIDs)
}

// ListSeats returns the full inventory snapshot for an event ordered by
// section, row and number.
func (r *SeatRepo) ListSeats(ctx context.Context, eventID uint64) ([]model.SeatAvailability, error) {
	base, err := r.basePrice(ctx, eventID)
	if err != nil {
		return nil, err
	}
	const q = `SELECT s.id, sec.name, s.row_no, s.seat_no, s.seat_type, sec.price_multiplier_pct,
	                  (SELECT COUNT(*) FROM tickets t JOIN bookings b ON b.id = t.booking_id
	                   WHERE t.event_id = e.id AND t.seat_id = s.id AND ` + activeTicketPredicate + `) AS taken
	           FROM events e
	           JOIN sections sec ON sec.venue_id = e.venue_id
	           JOIN seats s ON s.section_id = sec.id
	           WHERE e.id = ?
	           ORDER BY sec.name, s.row_no, s.seat_no, s.id`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := []model.SeatAvailability{}
	for rows.Next() {
		var (
			s     model.SeatAvailability
			pct   int64
			taken int64
		)
		if err := rows.Scan(&s.SeatID, &s.Section, &s.Row, &s.Number, &s.SeatType, &pct, &taken); err != nil {
			return nil, err
		}
		s.PriceCents = base * pct / 100
		s.Available = taken == 0
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func occupied(ctx context.Context, db querier, eventID uint64, seatIDs []string) ([]string, error) {
	q := `SELECT DISTINCT t.seat_id
	      FROM tickets t
	      JOIN bookings b ON b.id = t.booking_id
	      WHERE t.event_id = ? AND t.seat_id IN (` + placeholders(len(seatIDs)) + `)
	        AND ` + activeTicketPredicate
	rows, err := db.QueryContext(ctx, q, append([]any{eventID}, stringArgs(seatIDs)...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var taken []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		taken = append(taken, id)
	}
	return taken, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}
