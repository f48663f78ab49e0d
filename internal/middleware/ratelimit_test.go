package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func limitedHandler(client *redis.Client, limit int, window time.Duration) http.Handler {
	return RateLimitMiddleware(client, RateLimitConfig{
		RequestsPerWindow: limit,
		Window:            window,
		KeyPrefix:         "ratelimit",
	}, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hit(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/favorites/x", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestProperty_RateLimitingBlocksExcessiveRequests(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("exactly the limit passes and the excess gets 429", prop.ForAll(
		func(limit, excess int) bool {
			mr, err := miniredis.Run()
			if err != nil {
				t.Fatalf("miniredis: %v", err)
			}
			defer mr.Close()
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			defer client.Close()

			handler := limitedHandler(client, limit, time.Second)
			passed, blocked := 0, 0
			for i := 0; i < limit+excess; i++ {
				switch hit(handler, "192.168.1.100").Code {
				case http.StatusOK:
					passed++
				case http.StatusTooManyRequests:
					blocked++
				}
			}
			return passed == limit && blocked == excess
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_RemainingCountsDown(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("X-RateLimit-Remaining falls by one per request", prop.ForAll(
		func(limit int) bool {
			mr, err := miniredis.Run()
			if err != nil {
				t.Fatalf("miniredis: %v", err)
			}
			defer mr.Close()
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			defer client.Close()

			handler := limitedHandler(client, limit, time.Second)
			for i := 1; i <= limit; i++ {
				w := hit(handler, "192.168.1.101")
				if w.Header().Get("X-RateLimit-Limit") != strconv.Itoa(limit) {
					return false
				}
				if w.Header().Get("X-RateLimit-Remaining") != strconv.Itoa(limit-i) {
					return false
				}
			}
			return hit(handler, "192.168.1.101").Header().Get("X-RateLimit-Remaining") == "0"
		},
		gen.IntRange(1, 30),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRateLimitMiddleware_BlockedResponse(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	handler := limitedHandler(client, 1, time.Minute)
	require.Equal(t, http.StatusOK, hit(handler, "10.0.0.9:1").Code)

	w := hit(handler, "10.0.0.9:1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
}

func TestRateLimitMiddleware_WindowExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	handler := limitedHandler(client, 2, time.Minute)
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, hit(handler, "10.0.0.2:1").Code)
	}
	require.Equal(t, http.StatusTooManyRequests, hit(handler, "10.0.0.2:1").Code)
	assert.True(t, mr.TTL("ratelimit:10.0.0.2") > 0)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.2:1").Code)
}

func TestRateLimitMiddleware_AnonymousBucketIgnoresSourcePort(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	handler := limitedHandler(client, 2, time.Minute)
	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.4:40001").Code)
	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.4:40002").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "10.0.0.4:40003").Code)
	assert.Equal(t, http.StatusOK, hit(handler, "[2001:db8::1]:40004").Code)

	assert.True(t, mr.Exists("ratelimit:10.0.0.4"))
	assert.True(t, mr.Exists("ratelimit:2001:db8::1"))
}

func TestClientHost(t *testing.T) {
	assert.Equal(t, "10.0.0.5", clientHost("10.0.0.5:8080"))
	assert.Equal(t, "10.0.0.5", clientHost("10.0.0.5"))
	assert.Equal(t, "2001:db8::1", clientHost("[2001:db8::1]:443"))
}

func TestRateLimitMiddleware_KeysAuthenticatedUsersSeparately(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	limited := limitedHandler(redisClient, 1, time.Minute)
	handler := OptionalAuth(testSecret, zap.NewNop())(limited)

	send := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/listings/x/favorite", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	first, err := IssueToken(testSecret, uuid.New(), "user", time.Hour)
	require.NoError(t, err)
	second, err := IssueToken(testSecret, uuid.New(), "user", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, send(first))
	assert.Equal(t, http.StatusTooManyRequests, send(first))
	assert.Equal(t, http.StatusOK, send(second))
	assert.Equal(t, http.StatusOK, send(""))
	assert.Equal(t, http.StatusTooManyRequests, send(""))
}

func TestRateLimitMiddleware_FailsOpenWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer redisClient.Close()
	mr.Close()

	handler := limitedHandler(redisClient, 1, time.Minute)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.3:1").Code)
	}
}
