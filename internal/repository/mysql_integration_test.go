package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iliyamo/ticket-booking-core/internal/database"
	"github.com/iliyamo/ticket-booking-core/internal/model"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMySQLIntegration(t *testing.T) {
	if testing.Short() || os.Getenv("SKIP_DOCKER") == "1" {
		t.Skip("SKIP_DOCKER=1 set; skipping integration test")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
	pool.MaxWait = 2 * time.Minute

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=secret",
			"MYSQL_DATABASE=booking_test",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })

	var db *sql.DB
	err = pool.Retry(func() error {
		var openErr error
		db, openErr = database.Open(database.Options{
			User: "root",
			Pass: "secret",
			Host: "localhost",
			Port: resource.GetPort("3306/tcp"),
			Name: "booking_test",
		})
		return openErr
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db, zap.NewNop()))
	require.NoError(t, database.Migrate(db, zap.NewNop()), "migrations are re-runnable")

	ctx := context.Background()
	for _, s := range []string{
		`INSERT INTO events (id, venue_id, name, starts_at, base_price_cents) VALUES (1, 1, 'Concert', '2025-06-01 20:00:00', 5000)`,
		`INSERT INTO sections (id, venue_id, name, price_multiplier_pct) VALUES (1, 1, 'Floor', 120)`,
		`INSERT INTO seats (id, section_id, row_no, seat_no, seat_type) VALUES ('V1-FLOOR-1-1', 1, 1, 1, 'Standard'), ('V1-FLOOR-1-2', 1, 1, 2, 'Standard'), ('V1-FLOOR-1-3', 1, 1, 3, 'Standard')`,
	} {
		_, err := db.ExecContext(ctx, s)
		require.NoError(t, err)
	}

	users := NewUserRepo(db)
	uid, err := users.CreateUser(ctx, &model.User{Email: "it@example.com", PasswordHash: "h", Role: model.RoleCustomer, IsActive: true, CreatedAt: t0})
	require.NoError(t, err)
	_, err = users.CreateUser(ctx, &model.User{Email: "it@example.com", PasswordHash: "h", Role: model.RoleCustomer, IsActive: true, CreatedAt: t0})
	assert.ErrorIs(t, err, ErrDuplicate)

	tokens := NewTokenRepo(db)
	oldID, err := tokens.InsertToken(ctx, newToken(uid, "it-old", t0))
	require.NoError(t, err)
	_, err = tokens.RotateToken(ctx, oldID, newToken(uid, "it-new", t0.Add(time.Second)), t0.Add(time.Second))
	require.NoError(t, err)
	_, err = tokens.RotateToken(ctx, oldID, newToken(uid, "it-newer", t0.Add(time.Second)), t0.Add(time.Second))
	assert.ErrorIs(t, err, ErrConflict)

	prices, err := NewSeatRepo(db).SeatPrices(ctx, 1, []string{"V1-FLOOR-1-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(6000), prices["V1-FLOOR-1-1"])

	bookings := NewBookingRepo(db)
	b := &model.Booking{UserID: uid, EventID: 1, Status: model.BookingConfirmed, Reference: "BK-2025-ITTEST", CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, bookings.CommitBooking(ctx, b, []model.Ticket{ticket("V1-FLOOR-1-1", "00000000-0000-0000-0000-000000000001", 6000)}, ""))
	again := &model.Booking{UserID: uid, EventID: 1, Status: model.BookingConfirmed, Reference: "BK-2025-ITTES2", CreatedAt: t0, UpdatedAt: t0}
	err = bookings.CommitBooking(ctx, again, []model.Ticket{ticket("V1-FLOOR-1-1", "00000000-0000-0000-0000-000000000002", 6000)}, "")
	assert.ErrorIs(t, err, ErrConflict)

	// A keyed extension is found again by its key.
	require.NoError(t, bookings.CommitBooking(ctx, b, []model.Ticket{ticket("V1-FLOOR-1-2", "00000000-0000-0000-0000-000000000003", 6000)}, "it-ext"))
	byKey, err := bookings.BookingByIdempotencyKey(ctx, uid, "it-ext")
	require.NoError(t, err)
	assert.Equal(t, b.ID, byKey.ID)
	assert.Len(t, byKey.Tickets, 2)

	// With no reservation lock in front, concurrent commits for one seat
	// still sell it once.
	const racers = 8
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rb := &model.Booking{UserID: uid, EventID: 1, Status: model.BookingConfirmed,
				Reference: fmt.Sprintf("BK-2025-RACE%02d", i), CreatedAt: t0, UpdatedAt: t0}
			code := fmt.Sprintf("00000000-0000-0000-0000-0000000001%02d", i)
			err := bookings.CommitBooking(ctx, rb, []model.Ticket{ticket("V1-FLOOR-1-3", code, 6000)}, "")
			if err == nil {
				wins.Add(1)
				return
			}
			assert.ErrorIs(t, err, ErrConflict)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	taken, err := NewSeatRepo(db).OccupiedSeats(ctx, 1, []string{"V1-FLOOR-1-3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"V1-FLOOR-1-3"}, taken)
}
