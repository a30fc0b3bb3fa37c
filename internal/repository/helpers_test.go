package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// sqliteSchema mirrors the MySQL migrations closely enough for the
// queries in this package.
const sqliteSchema = `
CREATE TABLE users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    full_name     TEXT NOT NULL DEFAULT '',
    phone         TEXT NULL,
    role          TEXT NOT NULL DEFAULT 'CUSTOMER',
    is_active     INTEGER NOT NULL DEFAULT 1,
    last_login_at DATETIME NULL,
    created_at    DATETIME NOT NULL
);
CREATE TABLE refresh_tokens (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id        INTEGER NOT NULL,
    token_hash     TEXT NOT NULL UNIQUE,
    device_label   TEXT NULL,
    origin_address TEXT NULL,
    created_at     DATETIME NOT NULL,
    expires_at     DATETIME NOT NULL,
    revoked_at     DATETIME NULL,
    replaced_by    INTEGER NULL
);
CREATE TABLE events (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    venue_id         INTEGER NOT NULL,
    name             TEXT NOT NULL,
    starts_at        DATETIME NOT NULL,
    base_price_cents INTEGER NOT NULL
);
CREATE TABLE sections (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    venue_id             INTEGER NOT NULL,
    name                 TEXT NOT NULL,
    price_multiplier_pct INTEGER NOT NULL DEFAULT 100
);
CREATE TABLE seats (
    id         TEXT PRIMARY KEY,
    section_id INTEGER NOT NULL,
    row_no     INTEGER NOT NULL,
    seat_no    INTEGER NOT NULL,
    seat_type  TEXT NOT NULL DEFAULT 'Standard'
);
CREATE TABLE bookings (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id         INTEGER NOT NULL,
    event_id        INTEGER NOT NULL,
    total_cents     INTEGER NOT NULL DEFAULT 0,
    status          TEXT NOT NULL DEFAULT 'Pending',
    reference       TEXT NOT NULL UNIQUE,
    idempotency_key TEXT NULL,
    created_at      DATETIME NOT NULL,
    updated_at      DATETIME NOT NULL,
    UNIQUE (user_id, idempotency_key)
);
CREATE TABLE tickets (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    booking_id      INTEGER NOT NULL,
    event_id        INTEGER NOT NULL,
    seat_id         TEXT NOT NULL,
    price_cents     INTEGER NOT NULL,
    validation_code TEXT NOT NULL UNIQUE,
    status          TEXT NOT NULL DEFAULT 'Valid',
    created_at      DATETIME NOT NULL
);
CREATE TABLE booking_requests (
    user_id         INTEGER NOT NULL,
    idempotency_key TEXT NOT NULL,
    booking_id      INTEGER NOT NULL,
    created_at      DATETIME NOT NULL,
    PRIMARY KEY (user_id, idempotency_key)
);
`

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "booking.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)
	return db
}

// seedInventory creates event 1 (venue 1, base 5000) with sections
// Floor (100%) and VIP (150%), and event 2 on a different venue.
func seedInventory(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()
	stmts := []string{
		`INSERT INTO events (id, venue_id, name, starts_at, base_price_cents) VALUES (1, 1, 'Concert', '2025-06-01 20:00:00', 5000)`,
		`INSERT INTO events (id, venue_id, name, starts_at, base_price_cents) VALUES (2, 2, 'Play', '2025-06-02 20:00:00', 3000)`,
		`INSERT INTO sections (id, venue_id, name, price_multiplier_pct) VALUES (1, 1, 'Floor', 100)`,
		`INSERT INTO sections (id, venue_id, name, price_multiplier_pct) VALUES (2, 1, 'VIP', 150)`,
		`INSERT INTO sections (id, venue_id, name, price_multiplier_pct) VALUES (3, 2, 'Stalls', 100)`,
		`INSERT INTO seats (id, section_id, row_no, seat_no, seat_type) VALUES ('V1-FLOOR-1-1', 1, 1, 1, 'Standard')`,
		`INSERT INTO seats (id, section_id, row_no, seat_no, seat_type) VALUES ('V1-FLOOR-1-2', 1, 1, 2, 'Standard')`,
		`INSERT INTO seats (id, section_id, row_no, seat_no, seat_type) VALUES ('V1-VIP-1-1', 2, 1, 1, 'VIP')`,
		`INSERT INTO seats (id, section_id, row_no, seat_no, seat_type) VALUES ('V2-STALLS-1-1', 3, 1, 1, 'Standard')`,
		`INSERT INTO users (id, email, password_hash, role, created_at) VALUES (1, 'a@example.com', 'x', 'CUSTOMER', '2025-01-01 00:00:00')`,
	}
	for _, s := range stmts {
		_, err := db.ExecContext(ctx, s)
		require.NoError(t, err, s)
	}
}
