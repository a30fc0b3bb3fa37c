package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadBookingConfigDefaults(t *testing.T) {
	cfg := LoadBookingConfig()
	assert.Equal(t, 10*time.Second, cfg.LockTTL)
	assert.Equal(t, 3, cfg.LockRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.LockBackoff)
	assert.Equal(t, 5*time.Second, cfg.SeatCacheTTL)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.Equal(t, "lock:seat", cfg.LockPrefix)
}

func TestLoadBookingConfigRaisesLockTTLAboveCriticalSection(t *testing.T) {
	t.Setenv("LOCK_TTL", "2s")
	t.Setenv("STORE_TIMEOUT", "2s")
	cfg := LoadBookingConfig()
	assert.Greater(t, cfg.LockTTL, 2*cfg.StoreTimeout)
}

func TestLoadBookingConfigIgnoresGarbage(t *testing.T) {
	t.Setenv("LOCK_RETRIES", "-4")
	t.Setenv("SEAT_CACHE_TTL", "soon")
	cfg := LoadBookingConfig()
	assert.Equal(t, 0, cfg.LockRetries)
	assert.Equal(t, 5*time.Second, cfg.SeatCacheTTL)
}

func TestLoadMemoryDriverSkipsDatabaseVars(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "15")
	t.Setenv("REFRESH_TOKEN_TTL_DAYS", "7")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg := Load()
	assert.Equal(t, DriverMemory, cfg.DBDriver)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 5, cfg.MaxDevices)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Empty(t, cfg.DBHost)
}

func TestLoadRateLimitConfigBurstOverride(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	cfg := LoadRateLimitConfig()
	assert.Equal(t, 5, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 2*time.Second, cfg.RefillInterval)
	assert.GreaterOrEqual(t, cfg.TTL, 10*time.Second)
}
