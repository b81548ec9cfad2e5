package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConnRefused = errors.New("connection refused")

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	cfg.Jitter = false
	return cfg
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastConfig()
	cfg.OnRetry = func(attempt int, _ time.Duration, err error) {
		retried = append(retried, attempt)
		assert.ErrorIs(t, err, errConnRefused)
	}

	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errConnRefused
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetry_MaxAttemptsExceeded(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastConfig(), func() error {
		calls++
		return errConnRefused
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errConnRefused)
	assert.Equal(t, 4, calls, "first call plus MaxAttempts retries")
}

func TestRetry_Disabled(t *testing.T) {
	calls := 0
	cfg := fastConfig()
	cfg.Enabled = false

	err := Retry(context.Background(), cfg, func() error {
		calls++
		return errConnRefused
	})
	assert.ErrorIs(t, err, errConnRefused)
	assert.Equal(t, 1, calls)
}

func TestRetry_NonRetryableError(t *testing.T) {
	errAuth := errors.New("NOAUTH")
	cfg := fastConfig()
	cfg.NonRetryableErrors = []error{errAuth}

	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return errors.Join(errors.New("dial"), errAuth)
	})
	assert.ErrorIs(t, err, errAuth)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig()
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour
	cfg.OnRetry = func(int, time.Duration, error) { cancel() }

	err := Retry(ctx, cfg, func() error { return errConnRefused })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithResult(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), fastConfig(), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errConnRefused
		}
		return "PONG", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "PONG", got)
}

func TestCalculateDelay(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, calculateDelay(cfg, 0))
	assert.Equal(t, 400*time.Millisecond, calculateDelay(cfg, 2))
	assert.Equal(t, time.Second, calculateDelay(cfg, 10))

	cfg.Jitter = true
	for i := 0; i < 50; i++ {
		d := calculateDelay(cfg, 1)
		assert.GreaterOrEqual(t, d, 150*time.Millisecond)
		assert.LessOrEqual(t, d, 250*time.Millisecond)
	}
}
