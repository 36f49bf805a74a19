package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig configures the Redis token bucket limiter.  Reads
// (catalog browsing, listings) and writes (rentals, returns, payments,
// catalog edits) draw from separate buckets per clerk, so a burst of
// lookups never uses up the tokens needed to record a return.
type RateLimitConfig struct {
	Enabled bool

	Capacity     int // read bucket size
	RefillTokens int // read tokens added per interval

	WriteCapacity     int // write bucket size, defaults to Capacity
	WriteRefillTokens int // write tokens added per interval, defaults to RefillTokens

	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string // "clerk" (default), "ip" or "clerk_route"
	Prefix         string
	Debug          bool
}

func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:           envBool("RATE_LIMIT_ENABLED", true),
		Capacity:          envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:      envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		WriteCapacity:     envInt("RATE_LIMIT_WRITE_CAPACITY", 20),
		WriteRefillTokens: envInt("RATE_LIMIT_WRITE_REFILL_TOKENS", 0),
		RefillInterval:    envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:               envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:       envStr("RATE_LIMIT_KEY_STRATEGY", "clerk"),
		Prefix:            envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:             envBool("RATE_LIMIT_DEBUG", false),
	}
	if b := envInt("RATE_LIMIT_BURST", -1); b > 0 {
		def.Capacity = b
	}
	if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		def.RefillTokens = 1
		def.RefillInterval = every
	}
	return def.normalize()
}

// normalize clamps the limiter settings to usable values.  The key TTL
// must outlive a few refill intervals or idle buckets would reset early.
func (c RateLimitConfig) normalize() RateLimitConfig {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.WriteCapacity < 1 {
		c.WriteCapacity = c.Capacity
	}
	if c.WriteRefillTokens < 1 {
		c.WriteRefillTokens = c.RefillTokens
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
