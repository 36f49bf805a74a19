package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/media-rental/internal/config"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "test",
		MaxBodyBytes: 1 << 20,
	}
}

func do(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCacheHitAndInvalidateOnWrite(t *testing.T) {
	_, rdb := newRedis(t)
	e := echo.New()
	e.Use(NewRedisCache(cacheConfig(), rdb))

	hits := 0
	e.GET("/v1/items", func(c echo.Context) error {
		hits++
		return c.JSON(http.StatusOK, echo.Map{"n": hits})
	})
	e.POST("/v1/items", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})

	first := do(e, http.MethodGet, "/v1/items?page=1")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := do(e, http.MethodGet, "/v1/items?page=1")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, hits)

	assert.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/v1/items").Code)

	third := do(e, http.MethodGet, "/v1/items?page=1")
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"n":2}`, third.Body.String())
}

func TestCacheFailedWriteKeepsGeneration(t *testing.T) {
	mr, rdb := newRedis(t)
	e := echo.New()
	e.Use(NewRedisCache(cacheConfig(), rdb))
	e.DELETE("/v1/items/:id", func(c echo.Context) error {
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	})

	do(e, http.MethodDelete, "/v1/items/1")
	assert.False(t, mr.Exists("test:gen"))
}

func TestCacheKeyIncludesPathParams(t *testing.T) {
	_, rdb := newRedis(t)
	e := echo.New()
	e.Use(NewRedisCache(cacheConfig(), rdb))
	e.GET("/v1/items/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Param("id"))
	})

	assert.Equal(t, "1", do(e, http.MethodGet, "/v1/items/1").Body.String())
	assert.Equal(t, "2", do(e, http.MethodGet, "/v1/items/2").Body.String())
}

func TestCacheSkipsErrors(t *testing.T) {
	_, rdb := newRedis(t)
	e := echo.New()
	e.Use(NewRedisCache(cacheConfig(), rdb))
	e.GET("/v1/items/:id", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	})

	do(e, http.MethodGet, "/v1/items/9")
	rec := do(e, http.MethodGet, "/v1/items/9")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": []string{"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{}`))
	require.NoError(t, err)
	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{}`, string(body))

	_, _, _, ok = decodePayload([]byte{1, 2})
	assert.False(t, ok)
}

func TestTokenBucketBlocks(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e := echo.New()
	e.Use(NewTokenBucket(cfg, rdb))
	e.GET("/v1/titles", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/v1/titles").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/v1/titles").Code)

	rec := do(e, http.MethodGet, "/v1/titles")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rate_limited"`)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucketSeparatesWritesPerClerk(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       5,
		RefillTokens:   1,
		WriteCapacity:  1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		Prefix:         "rl",
	}
	e := echo.New()
	e.Use(NewTokenBucket(cfg, rdb))
	e.GET("/v1/rentals", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.PATCH("/v1/rentals/:id/return", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	from := func(method, path, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := from(http.MethodPatch, "/v1/rentals/1/return", "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "write", rec.Header().Get("X-RateLimit-Bucket"))

	rec = from(http.MethodPatch, "/v1/rentals/2/return", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "too many write requests")

	rec = from(http.MethodGet, "/v1/rentals", "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "read", rec.Header().Get("X-RateLimit-Bucket"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, from(http.MethodPatch, "/v1/rentals/1/return", "10.0.0.2").Code)
	assert.True(t, mr.Exists("rl:write:ip:10.0.0.1"))
	assert.True(t, mr.Exists("rl:write:ip:10.0.0.2"))
	assert.True(t, mr.Exists("rl:read:ip:10.0.0.1"))
}

func TestTokenBucketRefills(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       1,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		Prefix:         "rl",
	}
	e := echo.New()
	e.Use(NewTokenBucket(cfg, rdb))
	e.GET("/v1/items", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/v1/items").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodGet, "/v1/items").Code)

	// Pretend the last refill happened two intervals ago.
	for _, key := range mr.Keys() {
		mr.HSet(key, "refilled_at", strconv.FormatInt(time.Now().Add(-2*time.Hour).UnixMilli(), 10))
	}
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/v1/items").Code)
}

func TestTokenBucketDisabledPassesThrough(t *testing.T) {
	e := echo.New()
	e.Use(NewTokenBucket(config.RateLimitConfig{}, nil))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/").Code)
	}
}

func signed(t *testing.T, secret, role string, method jwt.SigningMethod) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, jwt.MapClaims{
		"sub":  "clerk-1",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWTAuthAndRole(t *testing.T) {
	e := echo.New()
	g := e.Group("/v1", JWTAuth("secret"), RequireRole("ADMIN", "CLERK"))
	g.GET("/me", func(c echo.Context) error { return c.String(http.StatusOK, currentUserID(c)) })

	testCases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signed(t, "other", "ADMIN", jwt.SigningMethodHS256), http.StatusUnauthorized},
		{"wrong alg", "Bearer " + signed(t, "secret", "ADMIN", jwt.SigningMethodHS512), http.StatusUnauthorized},
		{"wrong role", "Bearer " + signed(t, "secret", "GUEST", jwt.SigningMethodHS256), http.StatusForbidden},
		{"clerk", "Bearer " + signed(t, "secret", "CLERK", jwt.SigningMethodHS256), http.StatusOK},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "clerk-1", rec.Body.String())
			}
		})
	}
}

func TestSlogWritesRequestLine(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	e := echo.New()
	Register(e, logger)
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "boom") })

	rec := do(e, http.MethodGet, "/healthz")
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	do(e, http.MethodGet, "/boom")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"path":"/healthz"`)
	assert.Contains(t, lines[0], `"status":204`)
	assert.Contains(t, lines[1], `"status":418`)
}
