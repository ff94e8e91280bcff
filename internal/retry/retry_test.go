package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBusy = errors.New("busy")

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	var retries int
	p := Policy{
		MaxRetries: 10,
		OnRetry:    func(error, time.Duration) { retries++ },
	}

	err := Do(t.Context(), p, func(attempt int) error {
		if attempt < 3 {
			return Again(errBusy)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, retries)
}

func TestDoExhausts(t *testing.T) {
	calls := 0
	err := Do(t.Context(), Policy{MaxRetries: 4}, func(int) error {
		calls++
		return Again(errBusy)
	})
	require.ErrorIs(t, err, ErrExhausted)
	require.ErrorIs(t, err, errBusy)
	assert.Equal(t, 5, calls)
}

func TestDoPermanentError(t *testing.T) {
	calls := 0
	err := Do(t.Context(), Policy{}, func(int) error {
		calls++
		return errBusy
	})
	require.ErrorIs(t, err, errBusy)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestDoCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := Do(ctx, Policy{}, func(int) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestDoThrottle(t *testing.T) {
	throttled := 0
	p := Policy{
		MaxRetries: 5,
		Throttle: func(context.Context) error {
			throttled++
			return nil
		},
	}

	err := Do(t.Context(), p, func(attempt int) error {
		if attempt < 2 {
			return Again(errBusy)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, throttled)
}

func TestAgain(t *testing.T) {
	assert.NoError(t, Again(nil))
	assert.True(t, IsTransient(Again(errBusy)))
	assert.False(t, IsTransient(errBusy))
	assert.ErrorIs(t, Again(errBusy), errBusy)
}
