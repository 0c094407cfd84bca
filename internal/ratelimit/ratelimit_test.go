package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		burst    int
		calls    int
		wantPass int
	}{
		{name: "burst allows initial requests", burst: 3, calls: 3, wantPass: 3},
		{name: "exceeding burst blocks", burst: 2, calls: 5, wantPass: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := PerMinute(1, tt.burst)
			defer rl.Stop()

			passed := 0
			for range tt.calls {
				if rl.Allow("203.0.113.9") {
					passed++
				}
			}
			assert.Equal(t, tt.wantPass, passed)
		})
	}
}

func TestKeyedRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := PerMinute(1, 1)
	defer rl.Stop()

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 2, rl.Len())
}

func TestKeyedRateLimiter_SweepEvictsIdleKeys(t *testing.T) {
	rl := New(rate.Limit(1), 1, time.Minute)
	defer rl.Stop()

	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	rl.Allow("old")
	clock = clock.Add(2 * time.Minute)
	rl.Allow("fresh")

	rl.Sweep()

	assert.Equal(t, 1, rl.Len())
	rl.mu.Lock()
	_, kept := rl.entries["fresh"]
	rl.mu.Unlock()
	assert.True(t, kept)
}

func TestKeyedRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := PerMinute(10, 1)
	rl.Stop()
	rl.Stop()
}
