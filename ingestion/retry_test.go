package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/bulkload/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: time.Millisecond,
		Multiplier:     2,
		RequestTimeout: time.Second,
	}
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, Multiplier: 2}

	assert.Equal(t, 2*time.Second, cfg.Backoff(1, nil))
	assert.Equal(t, 4*time.Second, cfg.Backoff(2, nil))
	assert.Equal(t, 8*time.Second, cfg.Backoff(3, nil))
}

func TestBackoff_Jitter(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, Multiplier: 2, Jitter: 0.2}

	assert.Equal(t, 1600*time.Millisecond, cfg.Backoff(1, func() float64 { return 0 }))
	assert.Equal(t, 2*time.Second, cfg.Backoff(1, func() float64 { return 0.5 }))

	hi := cfg.Backoff(1, func() float64 { return 0.999999 })
	assert.Less(t, hi, 2400*time.Millisecond)
	assert.Greater(t, hi, 2399*time.Millisecond)
}

func TestBackoff_Overflow(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Hour, Multiplier: 10}
	assert.Equal(t, time.Duration(1<<63-1), cfg.Backoff(40, nil))
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetryWithBackoff_Success(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), fastRetry(3), func(context.Context) error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), fastRetry(5), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return &core.TransientEndpointError{Err: errors.New("connection refused")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestRetryWithBackoff_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := &core.TransientEndpointError{Status: 503}
	err := RetryWithBackoff(context.Background(), fastRetry(3), func(context.Context) error {
		attempts++
		return expectedErr
	})
	require.Error(t, err)
	assert.Equal(t, expectedErr, err, "should return the last error")
	assert.Equal(t, 4, attempts, "first attempt plus MaxRetries")
}

func TestRetryWithBackoff_NonTransientStops(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), fastRetry(3), func(context.Context) error {
		attempts++
		return &core.FatalConfigurationError{Reason: "credentials rejected"}
	})
	assert.ErrorIs(t, err, core.ErrFatalConfiguration)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := RetryWithBackoff(ctx, fastRetry(10), func(context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return &core.TransientEndpointError{}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts, "should stop when context is canceled")
}
