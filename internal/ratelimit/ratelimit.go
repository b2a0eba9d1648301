// Package ratelimit provides a keyed rate limiter enforcing a minimum
// interval between requests per key. It supports both non-blocking (Allow)
// and blocking (Wait) operations.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedLimiter manages per-key rate limiting. Each unique key gets its own
// independent token bucket, so waiting on one key never delays another.
type KeyedLimiter struct {
	mu              sync.RWMutex
	limiters        map[string]*rate.Limiter
	intervals       map[string]time.Duration
	defaultInterval time.Duration
	burst           int
}

// New creates a keyed limiter with the given default minimum interval
// between requests for keys without an explicit override.
func New(defaultInterval time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		limiters:        make(map[string]*rate.Limiter),
		intervals:       make(map[string]time.Duration),
		defaultInterval: defaultInterval,
		burst:           1,
	}
}

// SetInterval overrides the minimum interval for one key. Must be called
// before the key's first request to take effect from the start; later calls
// replace the key's limiter.
func (kl *KeyedLimiter) SetInterval(key string, interval time.Duration) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	kl.intervals[key] = interval
	delete(kl.limiters, key)
}

// Allow reports whether a request for the given key may proceed immediately.
func (kl *KeyedLimiter) Allow(key string) bool {
	return kl.limiter(key).Allow()
}

// Wait blocks until a request for the given key is allowed or the context
// is canceled. The wait is cooperative: it never holds a lock while
// sleeping, so concurrent requests for other keys proceed unhindered.
func (kl *KeyedLimiter) Wait(ctx context.Context, key string) error {
	return kl.limiter(key).Wait(ctx)
}

// limiter returns the limiter for a key, creating one if needed.
func (kl *KeyedLimiter) limiter(key string) *rate.Limiter {
	// Fast path: read lock
	kl.mu.RLock()
	limiter, exists := kl.limiters[key]
	kl.mu.RUnlock()

	if exists {
		return limiter
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = kl.limiters[key]; exists {
		return limiter
	}

	interval := kl.defaultInterval
	if override, ok := kl.intervals[key]; ok {
		interval = override
	}

	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	limiter = rate.NewLimiter(limit, kl.burst)
	kl.limiters[key] = limiter
	return limiter
}
