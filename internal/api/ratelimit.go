package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arbscope/cross-chain-arb-engine/pkg/interfaces"
)

// RateLimiterImpl implements a token bucket rate limiter per client
type RateLimiterImpl struct {
	clients      map[string]*ClientBucket
	customLimits map[string]*interfaces.RateLimit
	mutex        sync.RWMutex
	defaultLimit *interfaces.RateLimit
}

// ClientBucket represents a token bucket for a specific client
type ClientBucket struct {
	tokens     float64
	lastRefill time.Time
	limit      *interfaces.RateLimit
}

// NewRateLimiter creates a new rate limiter with default limits
func NewRateLimiter() *RateLimiterImpl {
	return &RateLimiterImpl{
		clients:      make(map[string]*ClientBucket),
		customLimits: make(map[string]*interfaces.RateLimit),
		defaultLimit: &interfaces.RateLimit{
			RequestsPerMinute: 100,
			BurstSize:         20,
			WindowSize:        time.Minute,
		},
	}
}

// Allow checks if a client is allowed to make a request
func (rl *RateLimiterImpl) Allow(clientID string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	bucket := rl.getBucket(clientID)
	rl.refillBucket(bucket)

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true
	}
	return false
}

// GetLimits returns current rate limit status for a client
func (rl *RateLimiterImpl) GetLimits(clientID string) *interfaces.RateLimitInfo {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	bucket := rl.getBucket(clientID)
	rl.refillBucket(bucket)

	return &interfaces.RateLimitInfo{
		Limit:      bucket.limit.RequestsPerMinute,
		Remaining:  int(bucket.tokens),
		ResetTime:  bucket.lastRefill.Add(bucket.limit.WindowSize),
		WindowSize: bucket.limit.WindowSize,
	}
}

// SetCustomLimit sets a custom rate limit for a specific client
func (rl *RateLimiterImpl) SetCustomLimit(clientID string, limit *interfaces.RateLimit) error {
	if limit == nil {
		return fmt.Errorf("limit cannot be nil")
	}
	if limit.RequestsPerMinute <= 0 || limit.BurstSize <= 0 {
		return fmt.Errorf("limits must be positive")
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.customLimits[clientID] = limit
	// Reset the bucket so the new limit takes effect immediately.
	delete(rl.clients, clientID)
	return nil
}

// getBucket returns the bucket for a client, creating it if needed.
// Caller must hold the mutex.
func (rl *RateLimiterImpl) getBucket(clientID string) *ClientBucket {
	bucket, exists := rl.clients[clientID]
	if !exists {
		limit := rl.defaultLimit
		if custom, ok := rl.customLimits[clientID]; ok {
			limit = custom
		}
		bucket = &ClientBucket{
			tokens:     float64(limit.BurstSize),
			lastRefill: time.Now(),
			limit:      limit,
		}
		rl.clients[clientID] = bucket
	}
	return bucket
}

// refillBucket adds tokens based on elapsed time. Caller must hold the mutex.
func (rl *RateLimiterImpl) refillBucket(bucket *ClientBucket) {
	now := time.Now()
	elapsed := now.Sub(bucket.lastRefill)

	tokensToAdd := elapsed.Minutes() * float64(bucket.limit.RequestsPerMinute)
	bucket.tokens += tokensToAdd
	if bucket.tokens > float64(bucket.limit.BurstSize) {
		bucket.tokens = float64(bucket.limit.BurstSize)
	}
	bucket.lastRefill = now
}

// CleanupExpiredClients removes buckets idle for longer than maxAge.
func (rl *RateLimiterImpl) CleanupExpiredClients(maxAge time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for clientID, bucket := range rl.clients {
		if bucket.lastRefill.Before(cutoff) {
			delete(rl.clients, clientID)
		}
	}
}

// RateLimitMiddleware applies the limiter to every request.
func (rl *RateLimiterImpl) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := getClientID(r)

		limits := rl.GetLimits(clientID)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limits.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limits.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(limits.ResetTime.Unix(), 10))

		if !rl.Allow(clientID) {
			w.Header().Set("Retry-After", strconv.Itoa(int(limits.WindowSize.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientID identifies a client by forwarded address, falling back to the
// connection's remote address.
func getClientID(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx > 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
