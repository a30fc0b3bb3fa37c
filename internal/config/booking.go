package config

import "time"

// BookingConfig tunes the reservation lock and the availability cache.
//
// LockTTL bounds how long a crashed holder can block a seat; it must cover
// the availability re-check plus the commit, each bounded by StoreTimeout.
// LockRetries and LockBackoff bound how long a contended attempt waits
// before it is rejected.  SeatCacheTTL is the worst-case staleness of the
// listing snapshot.
type BookingConfig struct {
	LockTTL      time.Duration
	LockRetries  int
	LockBackoff  time.Duration
	LockPrefix   string
	SeatCacheTTL time.Duration
	CachePrefix  string
	StoreTimeout time.Duration
}

// LoadBookingConfig reads the LOCK_*, SEAT_CACHE_* and STORE_TIMEOUT
// variables.  Defaults are used when variables are not set.
func LoadBookingConfig() BookingConfig {
	cfg := BookingConfig{
		LockTTL:      envDur("LOCK_TTL", 10*time.Second),
		LockRetries:  envInt("LOCK_RETRIES", 3),
		LockBackoff:  envDur("LOCK_RETRY_BACKOFF", 50*time.Millisecond),
		LockPrefix:   envStr("LOCK_PREFIX", "lock:seat"),
		SeatCacheTTL: envDur("SEAT_CACHE_TTL", 5*time.Second),
		CachePrefix:  envStr("SEAT_CACHE_PREFIX", "avail"),
		StoreTimeout: envDur("STORE_TIMEOUT", 3*time.Second),
	}
	return cfg.normalize()
}

func (c BookingConfig) normalize() BookingConfig {
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 3 * time.Second
	}
	if floor := 2 * c.StoreTimeout; c.LockTTL <= floor {
		c.LockTTL = floor + time.Second
	}
	if c.LockRetries < 0 {
		c.LockRetries = 0
	}
	if c.LockBackoff <= 0 {
		c.LockBackoff = 50 * time.Millisecond
	}
	if c.SeatCacheTTL <= 0 {
		c.SeatCacheTTL = 5 * time.Second
	}
	return c
}
