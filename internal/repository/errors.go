// Package repository holds the Durable Store (MySQL via database/sql) and
// Shared Fast Store (Redis) adapters.  The sentinel values below let the
// service layer tell failure scenarios apart without knowing the driver.
package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key.
var ErrDuplicate = errors.New("duplicate key")

// ErrConflict is returned when a conditional update matched zero rows,
// e.g. rotating a refresh token that was revoked concurrently.
var ErrConflict = errors.New("conflict")

// isDuplicateKey recognises unique violations from MySQL (1062) and from
// SQLite, which the adapters are exercised against in tests.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isMySQL reports whether db is served by the MySQL driver, which is the
// only dialect the adapters use row locks with.
func isMySQL(db *sql.DB) bool {
	_, ok := db.Driver().(*mysql.MySQLDriver)
	return ok
}
