package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(3, time.Millisecond, 10*time.Millisecond)

	require.False(t, p.ShouldRetry(nil, 0))
	require.True(t, p.ShouldRetry(errBoom, 0))
	require.True(t, p.ShouldRetry(errBoom, 2))
	require.False(t, p.ShouldRetry(errBoom, 3), "attempts exhausted")
	require.False(t, p.ShouldRetry(context.Canceled, 0))
	require.False(t, p.ShouldRetry(context.DeadlineExceeded, 0))
}

func TestRetryPolicyBackoffBounded(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(5, 100*time.Millisecond, time.Second)
	for attempt := 0; attempt < 10; attempt++ {
		d := p.Backoff(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, time.Second)
	}
}

func TestRetryPolicyDoEventuallySucceeds(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(5, time.Millisecond, 2*time.Millisecond)
	attempts := 0
	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryPolicyDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(2, time.Millisecond, 2*time.Millisecond)
	attempts := 0
	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, 3, attempts, "initial attempt plus two retries")
}

func TestRetryPolicyDoStopsOnCancel(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(10, 50*time.Millisecond, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := p.Do(ctx, func(context.Context) error {
		attempts++
		return errBoom
	})
	require.True(t, errors.Is(err, context.Canceled) || errors.Is(err, errBoom))
	require.LessOrEqual(t, attempts, 3)
}
