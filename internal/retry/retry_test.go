package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestPoll(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("returns on the first found attempt", func(t *testing.T) {
		calls := 0
		v, err := Poll(context.Background(), Policy{MaxAttempts: 5, Interval: time.Millisecond}, func(context.Context) (string, bool) {
			calls++
			return "ready", calls == 3
		})
		require.NoError(t, err)
		assert.Equal(t, "ready", v)
		assert.Equal(t, 3, calls, "polling must stop once the probe succeeds")
	})

	t.Run("exhausts the budget", func(t *testing.T) {
		calls := 0
		_, err := Poll(context.Background(), Policy{MaxAttempts: 4, Interval: time.Millisecond}, func(context.Context) (int, bool) {
			calls++
			return 0, false
		})
		assert.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, 4, calls)
	})

	t.Run("non-positive attempts still probe once", func(t *testing.T) {
		calls := 0
		_, err := Poll(context.Background(), Policy{MaxAttempts: 0}, func(context.Context) (int, bool) {
			calls++
			return 0, false
		})
		assert.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, 1, calls)
	})

	t.Run("paces attempts by the interval", func(t *testing.T) {
		const interval = 20 * time.Millisecond
		start := time.Now()
		_, err := Poll(context.Background(), Policy{MaxAttempts: 3, Interval: interval}, func(context.Context) (int, bool) {
			return 0, false
		})
		assert.ErrorIs(t, err, ErrExhausted)
		// The first attempt is immediate; the next two wait one interval each.
		assert.GreaterOrEqual(t, time.Since(start), 2*interval-5*time.Millisecond)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, err := Poll(ctx, Policy{MaxAttempts: 100, Interval: 50 * time.Millisecond}, func(context.Context) (int, bool) {
			calls++
			cancel()
			return 0, false
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled before the first attempt", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Poll(ctx, Policy{MaxAttempts: 3}, func(context.Context) (int, bool) {
			t.Fatal("probe must not run")
			return 0, false
		})
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("deadline before the next attempt reports the deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		calls := 0
		_, err := Poll(ctx, Policy{MaxAttempts: 3, Interval: time.Hour}, func(context.Context) (int, bool) {
			calls++
			return 0, false
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, ErrExhausted)
		assert.Equal(t, 1, calls)
	})
}

func TestAttempts(t *testing.T) {
	cases := []struct {
		timeout, interval time.Duration
		want              int
	}{
		{20 * time.Second, time.Second, 20},
		{2500 * time.Millisecond, time.Second, 3},
		{time.Second, time.Second, 1},
		{0, time.Second, 1},
		{time.Second, 0, 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Attempts(tc.timeout, tc.interval), "timeout=%v interval=%v", tc.timeout, tc.interval)
	}
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
	assert.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
