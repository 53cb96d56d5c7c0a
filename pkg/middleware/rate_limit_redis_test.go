package middleware

import (
	"net/http"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiterWindow(t *testing.T) {
	m := mr.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	// one request per minute-long window
	r := limitedRouter(RedisRateLimitMiddleware(client, 0.02, 0, time.Minute))

	require.Equal(t, http.StatusOK, hit(r, "alice").Code)
	w := hit(r, "alice")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	require.Equal(t, http.StatusOK, hit(r, "bob").Code)

	// window keys expire, so the next request starts a fresh count
	m.FastForward(2 * time.Minute)
	require.Equal(t, http.StatusOK, hit(r, "alice").Code)
}

func TestRedisLimiterBurstAddsToWindow(t *testing.T) {
	m := mr.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	// floor(0.001*3600) + 2
	r := limitedRouter(RedisRateLimitMiddleware(client, 0.001, 2, time.Hour))

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, hit(r, "alice").Code, "request %d", i)
	}
	require.Equal(t, http.StatusTooManyRequests, hit(r, "alice").Code)
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})
	m.Close()

	r := limitedRouter(RedisRateLimitMiddleware(client, 1, 0, time.Second))
	require.Equal(t, http.StatusOK, hit(r, "alice").Code)
	require.Equal(t, http.StatusOK, hit(r, "alice").Code)
}

func TestRedisLimiterWithoutClientUsesMemory(t *testing.T) {
	r := limitedRouter(RedisRateLimitMiddleware(nil, 0.5, 1, time.Second))
	require.Equal(t, http.StatusOK, hit(r, "alice").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(r, "alice").Code)
}
