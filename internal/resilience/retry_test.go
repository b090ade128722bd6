package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetry keeps test sleeps in the low milliseconds.
func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestDoVal_FirstAttemptSucceeds(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), fastRetry(3), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 1, calls)
}

func TestDoVal_RetriesTransientUntilSuccess(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), fastRetry(5), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, NewTransientError(errors.New("status 503"), 503)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 3, calls)
}

func TestDoVal_PermanentErrorNotRetried(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), fastRetry(5), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("status 404")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "a permanent error must fail on the first attempt")
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), fastRetry(3), func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("status 503"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var te *TransientError
	require.True(t, errors.As(err, &te), "the last attempt's error is returned as-is")
	assert.Equal(t, 503, te.StatusCode)
}

func TestDoVal_CanceledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	_, err := DoVal(ctx, fastRetry(5), func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("status 503"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_OnRetryObservesEveryRetry(t *testing.T) {
	cfg := fastRetry(3)
	var attempts []int
	cfg.OnRetry = func(attempt int, err error) {
		attempts = append(attempts, attempt)
		assert.Error(t, err)
	}

	_, err := DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		return 0, NewTransientError(errors.New("status 429"), 429)
	})
	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts, "no retry hook after the final attempt")
}

func TestRetryConfig_DelayGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		Multiplier:     2,
	}.withDefaults()

	assert.Equal(t, 100*time.Millisecond, cfg.delay(1))
	assert.Equal(t, 200*time.Millisecond, cfg.delay(2))
	assert.Equal(t, 300*time.Millisecond, cfg.delay(3), "capped at MaxBackoff")
	assert.Equal(t, 300*time.Millisecond, cfg.delay(10))
}

func TestRetryConfig_JitterStaysInBounds(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2,
		JitterFraction: 0.5,
	}

	for i := 0; i < 50; i++ {
		d := cfg.delay(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestRetryConfig_Defaults(t *testing.T) {
	cfg := RetryConfig{}.withDefaults()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 2.0, cfg.Multiplier)
}

func TestRetryFromConfig(t *testing.T) {
	cfg := RetryFromConfig(7, 250)
	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.InitialBackoff)

	cfg = RetryFromConfig(0, 0)
	assert.Equal(t, DefaultRetryConfig().MaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, DefaultRetryConfig().InitialBackoff, cfg.InitialBackoff)
}
