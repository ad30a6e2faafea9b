package throttle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryLimiterBudget(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	limiter := NewMemoryLimiter(3, time.Minute, time.Hour, WithClock(clock.Now))
	defer limiter.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "10.0.0.1|alice")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "attempt %d", i+1)
	}

	d, err := limiter.Allow(ctx, "10.0.0.1|alice")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 20*time.Second, d.RetryAfter)

	other, err := limiter.Allow(ctx, "10.0.0.2|alice")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are independent")

	clock.Advance(20 * time.Second)
	d, err = limiter.Allow(ctx, "10.0.0.1|alice")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "one token refilled")
}

func TestMemoryLimiterSweep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	limiter := NewMemoryLimiter(1, time.Hour, time.Hour, WithClock(clock.Now), WithIdleTTL(10*time.Minute))
	defer limiter.Close()
	ctx := context.Background()

	_, _ = limiter.Allow(ctx, "a")
	clock.Advance(5 * time.Minute)
	_, _ = limiter.Allow(ctx, "b")

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, limiter.Sweep())

	d, err := limiter.Allow(ctx, "a")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "swept key starts with a full bucket")

	d, err = limiter.Allow(ctx, "b")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestMemoryLimiterCloseIsIdempotent(t *testing.T) {
	limiter := NewMemoryLimiter(5, time.Minute, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.NoError(t, limiter.Close())
	assert.NoError(t, limiter.Close())
}

func TestOffAndRetryAfterSeconds(t *testing.T) {
	d, err := Off{}.Allow(context.Background(), "any")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	assert.Equal(t, 1, RetryAfterSeconds(0))
	assert.Equal(t, 1, RetryAfterSeconds(300*time.Millisecond))
	assert.Equal(t, 20, RetryAfterSeconds(20*time.Second))
	assert.Equal(t, 21, RetryAfterSeconds(20*time.Second+time.Millisecond))
}
