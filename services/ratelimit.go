package services

import (
	"sync"
	"time"
)

// RateLimiter bounds generation requests per identifier with a fixed window.
// State is per-process only, it does not survive restarts and is not shared
// across instances. Good enough as an abuse heuristic, not a hard guarantee.
type RateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	entries map[string]*limiterWindow
	now     func() time.Time
}

type limiterWindow struct {
	count   int
	resetAt time.Time
}

func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	return &RateLimiter{
		window:  window,
		max:     max,
		entries: map[string]*limiterWindow{},
		now:     time.Now,
	}
}

// DefaultGenerationLimiter matches the product limit of 5 generations per minute.
func DefaultGenerationLimiter() *RateLimiter {
	return NewRateLimiter(60*time.Second, 5)
}

func (r *RateLimiter) Allow(identifier string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.entries[identifier]
	if !ok || now.After(entry.resetAt) {
		r.entries[identifier] = &limiterWindow{count: 1, resetAt: now.Add(r.window)}
		return true
	}
	if entry.count >= r.max {
		return false
	}
	entry.count++
	return true
}
