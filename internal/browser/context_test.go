package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey string

const targetKey ctxKey = "target"

func TestCombineContext(t *testing.T) {
	t.Run("inherits values from the primary", func(t *testing.T) {
		primary := context.WithValue(context.Background(), targetKey, "tab-1")

		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		assert.Equal(t, "tab-1", combined.Value(targetKey))
		assert.NoError(t, combined.Err())
	})

	t.Run("canceled by the primary", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		cancelPrimary()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("canceled by the secondary with its cause", func(t *testing.T) {
		secondary, cancelSecondary := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancelSecondary()

		combined, cancel := CombineContext(context.Background(), secondary)
		defer cancel()

		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context was not canceled by the secondary deadline")
		}
		assert.ErrorIs(t, context.Cause(combined), context.DeadlineExceeded)
	})

	t.Run("keeps the primary deadline", func(t *testing.T) {
		deadline := time.Now().Add(time.Minute)
		primary, cancelPrimary := context.WithDeadline(context.Background(), deadline)
		defer cancelPrimary()

		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		got, ok := combined.Deadline()
		require.True(t, ok)
		assert.True(t, got.Equal(deadline))
	})

	t.Run("explicit cancel", func(t *testing.T) {
		combined, cancel := CombineContext(context.Background(), context.Background())
		cancel()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})
}

func TestDetach(t *testing.T) {
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), targetKey, "tab-1"))
	cancel()

	detached := Detach(parent)
	assert.NoError(t, detached.Err())
	assert.Nil(t, detached.Done())
	assert.Equal(t, "tab-1", detached.Value(targetKey))
	_, ok := detached.Deadline()
	assert.False(t, ok)
	assert.False(t, errors.Is(detached.Err(), context.Canceled))
}
