package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUpToMax(t *testing.T) {
	limiter := NewRateLimiter(60*time.Second, 5)

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow("user-1"), "request %d should pass", i+1)
	}
	assert.False(t, limiter.Allow("user-1"))
}

func TestRateLimiterIsPerIdentifier(t *testing.T) {
	limiter := NewRateLimiter(60*time.Second, 1)

	assert.True(t, limiter.Allow("user-1"))
	assert.False(t, limiter.Allow("user-1"))
	assert.True(t, limiter.Allow("user-2"))
}

func TestRateLimiterWindowReset(t *testing.T) {
	current := time.Now()
	limiter := NewRateLimiter(60*time.Second, 2)
	limiter.now = func() time.Time { return current }

	assert.True(t, limiter.Allow("user-1"))
	assert.True(t, limiter.Allow("user-1"))
	assert.False(t, limiter.Allow("user-1"))

	current = current.Add(61 * time.Second)
	assert.True(t, limiter.Allow("user-1"))
	assert.True(t, limiter.Allow("user-1"))
	assert.False(t, limiter.Allow("user-1"))
}
