package repository

import (
	"context"
	"testing"

	"github.com/iliyamo/ticket-booking-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeatRepoPrices(t *testing.T) {
	db := openTestDB(t)
	seedInventory(t, db)
	repo := NewSeatRepo(db)
	ctx := context.Background()

	prices, err := repo.SeatPrices(ctx, 1, []string{"V1-FLOOR-1-1", "V1-VIP-1-1", "V2-STALLS-1-1", "nope"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"V1-FLOOR-1-1": 5000, "V1-VIP-1-1": 7500}, prices)

	_, err = repo.SeatPrices(ctx, 99, []string{"V1-FLOOR-1-1"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeatRepoListAndOccupancy(t *testing.T) {
	db := openTestDB(t)
	seedInventory(t, db)
	seats := NewSeatRepo(db)
	bookings := NewBookingRepo(db)
	ctx := context.Background()

	list, err := seats.ListSeats(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, s := range list {
		assert.True(t, s.Available, s.SeatID)
	}
	assert.Equal(t, "Floor", list[0].Section)

	b := &model.Booking{UserID: 1, EventID: 1, Status: model.BookingConfirmed, Reference: "BK-2025-AAAAAA", CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, bookings.CommitBooking(ctx, b, []model.Ticket{
		{SeatID: "V1-VIP-1-1", PriceCents: 7500, ValidationCode: "vc-1", Status: model.TicketValid, CreatedAt: t0},
	}, ""))

	taken, err := seats.OccupiedSeats(ctx, 1, []string{"V1-VIP-1-1", "V1-FLOOR-1-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"V1-VIP-1-1"}, taken)

	// Occupancy is scoped to the event.
	taken, err = seats.OccupiedSeats(ctx, 2, []string{"V1-VIP-1-1"})
	require.NoError(t, err)
	assert.Empty(t, taken)

	list, err = seats.ListSeats(ctx, 1)
	require.NoError(t, err)
	for _, s := range list {
		assert.Equal(t, s.SeatID != "V1-VIP-1-1", s.Available, s.SeatID)
	}

	changed, err := bookings.CancelBooking(ctx, b.ID, t0)
	require.NoError(t, err)
	assert.True(t, changed)
	taken, err = seats.OccupiedSeats(ctx, 1, []string{"V1-VIP-1-1"})
	require.NoError(t, err)
	assert.Empty(t, taken, "cancelled tickets free the seat")
}

func TestSeatRepoListUnknownEvent(t *testing.T) {
	db := openTestDB(t)
	_, err := NewSeatRepo(db).ListSeats(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNotFound)
}
