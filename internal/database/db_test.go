package database

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverConfigRoundTrips(t *testing.T) {
	o := Options{User: "app", Pass: "p@ss:word", Host: "db.internal", Port: "3307", Name: "booking"}.withDefaults()

	parsed, err := mysql.ParseDSN(driverConfig(o).FormatDSN())
	require.NoError(t, err)
	assert.Equal(t, "app", parsed.User)
	assert.Equal(t, "p@ss:word", parsed.Passwd)
	assert.Equal(t, "db.internal:3307", parsed.Addr)
	assert.Equal(t, "booking", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.True(t, parsed.MultiStatements)
	assert.Equal(t, time.UTC, parsed.Loc)
	assert.Equal(t, 5*time.Second, parsed.Timeout)
	assert.Equal(t, "utf8mb4_unicode_ci", parsed.Collation)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{MaxOpenConns: 4, MaxIdleConns: 10}.withDefaults()
	assert.Equal(t, 4, o.MaxOpenConns)
	assert.Equal(t, 4, o.MaxIdleConns, "idle never exceeds open")
	assert.Equal(t, 30*time.Minute, o.ConnMaxLifetime)

	o = Options{}.withDefaults()
	assert.Equal(t, 25, o.MaxOpenConns)
	assert.Equal(t, 25, o.MaxIdleConns)
}

func TestOpenFailsFastWhenUnreachable(t *testing.T) {
	start := time.Now()
	_, err := Open(Options{User: "root", Host: "127.0.0.1", Port: "1", Name: "x", Timeout: 500 * time.Millisecond})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
