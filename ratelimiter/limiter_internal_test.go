package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCleanupExpiredDropsIdleKeys(t *testing.T) {
	limiter := NewKeyedLimiter(&Config{RequestsPerSecond: 1, BurstSize: 1, EntryTTL: time.Minute})
	t.Cleanup(func() { _ = limiter.Close() })

	limiter.Allow("idle")
	limiter.Allow("busy")

	limiter.entries["idle"].lastAccess.Store(time.Now().Add(-2 * time.Minute).UnixNano())
	limiter.cleanupExpired(time.Now())

	assert.Equal(t, 1, limiter.Len())
	_, found := limiter.entries["busy"]
	assert.True(t, found)
}
