package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbscope/cross-chain-arb-engine/pkg/interfaces"
)

func TestRateLimiter_AllowsBurst(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 20; i++ {
		assert.True(t, rl.Allow("client-a"), "request %d within burst should pass", i)
	}
	assert.False(t, rl.Allow("client-a"), "request beyond burst should be denied")

	// A different client has its own bucket.
	assert.True(t, rl.Allow("client-b"))
}

func TestRateLimiter_GetLimits(t *testing.T) {
	rl := NewRateLimiter()

	info := rl.GetLimits("client")
	assert.Equal(t, 100, info.Limit)
	assert.Equal(t, 20, info.Remaining)

	rl.Allow("client")
	info = rl.GetLimits("client")
	assert.Equal(t, 19, info.Remaining)
}

func TestRateLimiter_SetCustomLimit(t *testing.T) {
	rl := NewRateLimiter()

	require.Error(t, rl.SetCustomLimit("client", nil))
	require.Error(t, rl.SetCustomLimit("client", &interfaces.RateLimit{RequestsPerMinute: 0, BurstSize: 5}))

	require.NoError(t, rl.SetCustomLimit("client", &interfaces.RateLimit{
		RequestsPerMinute: 10,
		BurstSize:         2,
		WindowSize:        time.Minute,
	}))

	assert.True(t, rl.Allow("client"))
	assert.True(t, rl.Allow("client"))
	assert.False(t, rl.Allow("client"))
}

func TestRateLimiter_CleanupExpiredClients(t *testing.T) {
	rl := NewRateLimiter()
	rl.Allow("stale")

	rl.mutex.Lock()
	rl.clients["stale"].lastRefill = time.Now().Add(-2 * time.Hour)
	rl.mutex.Unlock()

	rl.CleanupExpiredClients(time.Hour)

	rl.mutex.RLock()
	_, exists := rl.clients["stale"]
	rl.mutex.RUnlock()
	assert.False(t, exists)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter()
	require.NoError(t, rl.SetCustomLimit("10.0.0.1", &interfaces.RateLimit{
		RequestsPerMinute: 10,
		BurstSize:         1,
		WindowSize:        time.Minute,
	}))

	handler := rl.RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "10", rr.Header().Get("X-RateLimit-Limit"))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestGetClientID(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.5:4312"
	assert.Equal(t, "192.168.1.5", getClientID(req))

	req.Header.Set("X-Real-IP", "10.1.1.1")
	assert.Equal(t, "10.1.1.1", getClientID(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2")
	assert.Equal(t, "203.0.113.9", getClientID(req))
}
