package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

func TestRateLimiter_BurstDoesNotBlock(t *testing.T) {
	rl := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 10, BurstSize: 3, AcquireTimeout: time.Second})

	for i := 0; i < 3; i++ {
		assert.True(t, rl.TryAcquire(), "acquire %d", i)
	}
	assert.False(t, rl.TryAcquire())
}

func TestRateLimiter_AcquireWaitsForRefill(t *testing.T) {
	rl := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 20, BurstSize: 2, AcquireTimeout: time.Second})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, rl.Acquire(ctx))
	require.NoError(t, rl.Acquire(ctx))
	assert.Less(t, time.Since(start), 25*time.Millisecond)

	require.NoError(t, rl.Acquire(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRateLimiter_AcquireTimeout(t *testing.T) {
	rl := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 0.1, BurstSize: 1, AcquireTimeout: 20 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, rl.Acquire(ctx))
	err := rl.Acquire(ctx)
	assert.ErrorIs(t, err, domain.ErrRateLimitTimeout)
	assert.Equal(t, domain.ClassTransient, Classify(err))
}

func TestRateLimiter_AcquireCancelled(t *testing.T) {
	rl := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 0.1, BurstSize: 1, AcquireTimeout: time.Minute})
	require.True(t, rl.TryAcquire())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := rl.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrRateLimitTimeout)
}

func TestRateLimiter_Pause(t *testing.T) {
	rl := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10, AcquireTimeout: time.Second})
	rl.Pause(time.Hour)
	assert.False(t, rl.TryAcquire())

	rl.Pause(0)
	assert.False(t, rl.TryAcquire())
}

func TestRateLimiter_Tokens(t *testing.T) {
	rl := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 5, AcquireTimeout: time.Second})
	assert.InDelta(t, 5.0, rl.Tokens(), 0.1)
	rl.TryAcquire()
	assert.InDelta(t, 4.0, rl.Tokens(), 0.1)
}
