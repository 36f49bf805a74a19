package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/media-rental/internal/config"
)

// Bucket names.  Safe methods draw from the read bucket, everything else
// from the write bucket.
const (
	bucketRead  = "read"
	bucketWrite = "write"
)

// tokenBucket takes one token from the bucket at KEYS[1], refilling it
// first for every whole interval elapsed since the last refill.
//
//	ARGV: now_ms, capacity, refill_tokens, interval_ms, ttl_ms
//	returns {allowed, tokens_left, retry_after_ms}
var tokenBucket = redis.NewScript(`
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'refilled_at')
local tokens = tonumber(state[1]) or capacity
local refilled_at = tonumber(state[2]) or now

local steps = math.floor(math.max(0, now - refilled_at) / interval)
if steps > 0 then
	tokens = math.min(capacity, tokens + steps * refill)
	refilled_at = refilled_at + steps * interval
end

local allowed, wait = 0, 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	wait = math.max(0, interval - (now - refilled_at))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'refilled_at', refilled_at)
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {allowed, tokens, wait}
`)

type bucketLimits struct {
	capacity int
	refill   int
}

// NewTokenBucket limits each clerk with two Redis token buckets, one for
// reads and a usually smaller one for writes (rentals, returns, payments,
// member activation and catalog edits).  Buckets refill lazily inside the
// script.  Redis errors let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	read := bucketLimits{max(cfg.Capacity, 1), max(cfg.RefillTokens, 1)}
	write := read
	if cfg.WriteCapacity > 0 {
		write.capacity = cfg.WriteCapacity
	}
	if cfg.WriteRefillTokens > 0 {
		write.refill = cfg.WriteRefillTokens
	}
	limits := map[string]bucketLimits{bucketRead: read, bucketWrite: write}
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}
	ttl := max(cfg.TTL, 5*interval)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			bucket := bucketFor(c.Request().Method)
			lim := limits[bucket]
			key := rateKey(cfg, c, bucket)

			res, err := tokenBucket.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(),
				lim.capacity,
				lim.refill,
				interval.Milliseconds(),
				ttl.Milliseconds(),
			).Int64Slice()
			if err != nil || len(res) != 3 {
				if cfg.Debug {
					slog.Warn("rate limit skipped", "key", key, "err", err)
				}
				return next(c)
			}
			allowed, remaining, waitMs := res[0] == 1, res[1], res[2]

			h := c.Response().Header()
			h.Set("X-RateLimit-Bucket", bucket)
			h.Set("X-RateLimit-Limit", strconv.Itoa(lim.capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if allowed {
				return next(c)
			}

			secs := int(math.Ceil(float64(waitMs) / 1000))
			h.Set("Retry-After", strconv.Itoa(secs))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "rate_limited",
				"message":     "too many " + bucket + " requests, retry later",
				"retry_after": secs,
			})
		}
	}
}

func bucketFor(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return bucketRead
	}
	return bucketWrite
}

// rateKey identifies the clerk by token subject, or by client IP for
// unauthenticated deployments.
func rateKey(cfg config.RateLimitConfig, c echo.Context, bucket string) string {
	clerk := currentUserID(c)
	if clerk == "anon" {
		clerk = "ip:" + c.RealIP()
	}
	parts := []string{cfg.Prefix, bucket}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip:"+c.RealIP())
	case "clerk_route":
		parts = append(parts, clerk, c.Path())
	default: // "clerk"
		parts = append(parts, clerk)
	}
	return strings.Join(parts, ":")
}
