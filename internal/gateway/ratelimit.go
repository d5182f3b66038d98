package gateway

import (
	"sync"

	"golang.org/x/time/rate"
)

// limiterKey is {userId, channel-kind, action type}, the granularity the
// spec's rate limiter is keyed at.
type limiterKey struct {
	userID string
	kind   ChannelKind
	action string
}

// RateLimiter is a keyed token-bucket set, one bucket lazily created per
// (user, channel-kind, action). Exceeding a bucket never disconnects — it
// yields a structured rate_limited error to the caller.
type RateLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	buckets  map[limiterKey]*rate.Limiter
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{rps: rate.Limit(rps), burst: burst, buckets: make(map[limiterKey]*rate.Limiter)}
}

func (r *RateLimiter) Allow(userID string, kind ChannelKind, action string) bool {
	key := limiterKey{userID: userID, kind: kind, action: action}
	r.mu.Lock()
	b, ok := r.buckets[key]
	if !ok {
		b = rate.NewLimiter(r.rps, r.burst)
		r.buckets[key] = b
	}
	r.mu.Unlock()
	return b.Allow()
}

// RetryAfterMs estimates the wait before the next token, for the
// rate_limited error's retryAfterMs field.
func (r *RateLimiter) RetryAfterMs(userID string, kind ChannelKind, action string) int64 {
	key := limiterKey{userID: userID, kind: kind, action: action}
	r.mu.Lock()
	b, ok := r.buckets[key]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	return b.Reserve().Delay().Milliseconds()
}
