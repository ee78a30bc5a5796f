package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohit-purandare/shelfbridge/internal/logger"
)

func TestPerMinute(t *testing.T) {
	assert.Equal(t, time.Second, PerMinute(60))
	assert.Equal(t, 2*time.Second, PerMinute(30))
	assert.Equal(t, DefaultRate, PerMinute(0))
	assert.Equal(t, DefaultRate, PerMinute(-5))
}

func TestWaitConsumesBurst(t *testing.T) {
	rl := NewRateLimiter(time.Second, 3, 1, logger.Get())
	ctx := context.Background()

	// The initial burst is served without blocking.
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	rl := NewRateLimiter(10*time.Second, 1, 1, logger.Get())
	ctx := context.Background()

	require.NoError(t, rl.Wait(ctx)) // drain the single token

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	err := rl.Wait(cancelCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOnRateLimitBacksOff(t *testing.T) {
	rl := NewRateLimiter(time.Second, 1, 1, logger.Get())

	initial := rl.GetRate()
	rl.OnRateLimit(0)
	afterFirst := rl.GetRate()
	assert.Greater(t, afterFirst, initial)

	// A second hit in quick succession backs off harder.
	rl.OnRateLimit(0)
	assert.Greater(t, rl.GetRate(), afterFirst)

	rl.ResetRate()
	assert.Equal(t, initial, rl.GetRate())
}

func TestOnRateLimitHonorsRetryAfter(t *testing.T) {
	rl := NewRateLimiter(time.Second, 1, 1, logger.Get())

	wait := rl.OnRateLimit(30 * time.Second)
	assert.Equal(t, 30*time.Second, wait)

	// Retry-After below the computed rate is ignored.
	wait = rl.OnRateLimit(time.Millisecond)
	assert.Equal(t, rl.GetRate(), wait)
}

func TestOnRateLimitCapped(t *testing.T) {
	rl := NewRateLimiter(4*time.Second, 1, 1, logger.Get())

	for i := 0; i < 10; i++ {
		rl.OnRateLimit(0)
	}
	assert.LessOrEqual(t, rl.GetRate(), 5*time.Second)
}

func TestAcquireReleaseConcurrencySlots(t *testing.T) {
	rl := NewRateLimiter(time.Millisecond, 10, 2, logger.Get())
	ctx := context.Background()

	require.NoError(t, rl.Acquire(ctx))
	require.NoError(t, rl.Acquire(ctx))

	// Both slots held: the next Acquire blocks until the context expires.
	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rl.Acquire(blocked), context.DeadlineExceeded)

	// Releasing a slot unblocks the next caller.
	rl.Release()
	require.NoError(t, rl.Acquire(ctx))

	rl.Release()
	rl.Release()
}
