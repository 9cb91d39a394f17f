package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnectRateLimiter(t *testing.T) {
	rl := NewConnectRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("user-1"), "attempt %d should pass", i+1)
	}
	assert.False(t, rl.Allow("user-1"))

	// Other identities have their own window.
	assert.True(t, rl.Allow("user-2"))
}

func TestConnectRateLimiterWindowExpiry(t *testing.T) {
	rl := NewConnectRateLimiter(1, 20*time.Millisecond)

	assert.True(t, rl.Allow("user-1"))
	assert.False(t, rl.Allow("user-1"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.Allow("user-1"))
}
