package ratelimiter_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pitabwire/voiceverify/config"
	"github.com/pitabwire/voiceverify/ratelimiter"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newLimiter(t *testing.T, cfg *ratelimiter.Config) *ratelimiter.KeyedLimiter {
	t.Helper()

	limiter := ratelimiter.NewKeyedLimiter(cfg)
	t.Cleanup(func() { _ = limiter.Close() })
	return limiter
}

func TestDefaultConfig(t *testing.T) {
	cfg := ratelimiter.DefaultConfig()
	require.NotNil(t, cfg)
	assert.Positive(t, cfg.RequestsPerSecond)
	assert.GreaterOrEqual(t, cfg.BurstSize, cfg.RequestsPerSecond)
	assert.Greater(t, cfg.CleanupInterval, time.Duration(0))
	assert.Greater(t, cfg.EntryTTL, time.Duration(0))
	assert.Positive(t, cfg.MaxEntries)
}

func TestConfigFrom(t *testing.T) {
	voiceCfg := &config.ConfigurationVoice{
		RateLimitRequestsPerSecond:     4,
		RateLimitBurst:                 9,
		RateLimitTrustForwardedHeaders: true,
	}

	cfg := ratelimiter.ConfigFrom(voiceCfg)
	assert.Equal(t, 4, cfg.RequestsPerSecond)
	assert.Equal(t, 9, cfg.BurstSize)
	assert.True(t, cfg.TrustForwardedHeaders)

	fallback := ratelimiter.ConfigFrom(nil)
	assert.Equal(t, ratelimiter.DefaultConfig(), fallback)
}

func TestNormalizedConfig(t *testing.T) {
	limiter := newLimiter(t, &ratelimiter.Config{RequestsPerSecond: 5, BurstSize: 1})

	cfg := limiter.Config()
	assert.Equal(t, 5, cfg.RequestsPerSecond)
	assert.Equal(t, 5, cfg.BurstSize)
	assert.Positive(t, cfg.MaxEntries)
}

func TestKeyedLimiterAllow(t *testing.T) {
	limiter := newLimiter(t, &ratelimiter.Config{RequestsPerSecond: 1, BurstSize: 2})

	assert.True(t, limiter.Allow("127.0.0.1"))
	assert.True(t, limiter.Allow("127.0.0.1"))
	assert.False(t, limiter.Allow("127.0.0.1"))

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.Equal(t, 2, limiter.Len())
}

func TestKeyedLimiterReserveReportsWait(t *testing.T) {
	limiter := newLimiter(t, &ratelimiter.Config{RequestsPerSecond: 1, BurstSize: 1})

	ok, wait := limiter.Reserve("caller")
	assert.True(t, ok)
	assert.Zero(t, wait)

	ok, wait = limiter.Reserve("caller")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, time.Second)
}

func TestKeyedLimiterEmptyKeyIsShared(t *testing.T) {
	limiter := newLimiter(t, &ratelimiter.Config{RequestsPerSecond: 1, BurstSize: 1})

	assert.True(t, limiter.Allow(""))
	assert.False(t, limiter.Allow(""))
	assert.Equal(t, 1, limiter.Len())
}

func TestKeyedLimiterEvictsOverMaxEntries(t *testing.T) {
	limiter := newLimiter(t, &ratelimiter.Config{RequestsPerSecond: 1, BurstSize: 1, MaxEntries: 3})

	for _, key := range []string{"a", "b", "c", "d", "e"} {
		limiter.Allow(key)
	}

	assert.Equal(t, 3, limiter.Len())
}

func TestKeyedLimiterConcurrentAccess(t *testing.T) {
	limiter := newLimiter(t, &ratelimiter.Config{RequestsPerSecond: 1, BurstSize: 10})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, allowed, 11)
	assert.GreaterOrEqual(t, allowed, 10)
}

func TestCloseIsIdempotent(t *testing.T) {
	limiter := ratelimiter.NewKeyedLimiter(nil)
	require.NoError(t, limiter.Close())
	require.NoError(t, limiter.Close())
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := newLimiter(t, &ratelimiter.Config{RequestsPerSecond: 1, BurstSize: 1})

	mw := ratelimiter.RateLimitMiddleware(limiter)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/voice/description/123456", nil)
	req.RemoteAddr = "127.0.0.1:1234"

	rr1 := httptest.NewRecorder()
	h.ServeHTTP(rr1, req)
	assert.Equal(t, http.StatusOK, rr1.Code)
	assert.Equal(t, "1", rr1.Header().Get("X-RateLimit-Limit"))

	rr2 := httptest.NewRecorder()
	h.ServeHTTP(rr2, req)
	assert.Equal(t, http.StatusTooManyRequests, rr2.Code)
	assert.Equal(t, "0", rr2.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "application/json", rr2.Header().Get("Content-Type"))

	retryAfter, err := strconv.Atoi(rr2.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Positive(t, retryAfter)

	var body ratelimiter.ErrorBody
	require.NoError(t, json.NewDecoder(rr2.Body).Decode(&body))
	assert.Equal(t, "rate_limit_exceeded", body.Code)
	assert.Equal(t, "rate limit exceeded", body.Error)

	other := httptest.NewRequest(http.MethodPost, "/v1/voice/description/123456", nil)
	other.RemoteAddr = "10.1.1.1:4321"
	rr3 := httptest.NewRecorder()
	h.ServeHTTP(rr3, other)
	assert.Equal(t, http.StatusOK, rr3.Code)
}

func TestRateLimitMiddlewareNilLimiter(t *testing.T) {
	h := ratelimiter.RateLimitMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for range 3 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusNoContent, rr.Code)
	}
}

func TestGetIP(t *testing.T) {
	assert.Equal(t, "unknown", ratelimiter.GetIP(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.10:5555"
	assert.Contains(t, ratelimiter.GetIP(req), "192.168.1.10")
}

func TestRateLimitMiddlewareIgnoresForwardedHeadersByDefault(t *testing.T) {
	limiter := newLimiter(t, &ratelimiter.Config{RequestsPerSecond: 1, BurstSize: 1})
	h := ratelimiter.RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for _, forwarded := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/voice/description/123456", nil)
		req.RemoteAddr = "198.51.100.9:4000"
		req.Header.Set("X-Forwarded-For", forwarded)

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, limiter.Len())
}

func TestCallerKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "198.51.100.9:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	direct := newLimiter(t, &ratelimiter.Config{RequestsPerSecond: 1})
	assert.Equal(t, "198.51.100.9", direct.CallerKey(req))

	proxied := newLimiter(t, &ratelimiter.Config{RequestsPerSecond: 1, TrustForwardedHeaders: true})
	assert.Equal(t, "203.0.113.7", proxied.CallerKey(req))
}

func TestRemoteIP(t *testing.T) {
	assert.Equal(t, "unknown", ratelimiter.RemoteIP(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ""
	assert.Equal(t, "unknown", ratelimiter.RemoteIP(req))

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ratelimiter.RemoteIP(req))

	req.RemoteAddr = "192.0.2.4"
	assert.Equal(t, "192.0.2.4", ratelimiter.RemoteIP(req))
}
