package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func noJitter(time.Duration) time.Duration { return 0 }

func TestRetry(t *testing.T) {
	t.Run("success_on_first_attempt", func(t *testing.T) {
		cfg := RetryPolicy{MaxRetries: 3, BaseBackoff: 10 * time.Millisecond, MaxBackoff: 100 * time.Millisecond, JitterFn: noJitter}

		err := Retry(context.Background(), cfg, func() error { return nil }, nil)
		assert.NoError(t, err)
	})

	t.Run("success_after_retry", func(t *testing.T) {
		attempts, retries := 0, 0
		cfg := RetryPolicy{MaxRetries: 3, BaseBackoff: time.Millisecond, MaxBackoff: 10 * time.Millisecond, JitterFn: noJitter}

		err := Retry(context.Background(), cfg, func() error {
			attempts++
			if attempts < 2 {
				return errors.New("failed")
			}
			return nil
		}, func(int, error) { retries++ })

		assert.NoError(t, err)
		assert.Equal(t, 2, attempts)
		assert.Equal(t, 1, retries)
	})

	t.Run("exhaust_retries", func(t *testing.T) {
		attempts := 0
		cfg := RetryPolicy{MaxRetries: 2, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, JitterFn: noJitter}

		err := Retry(context.Background(), cfg, func() error {
			attempts++
			return errors.New("always")
		}, nil)

		assert.EqualError(t, err, "always")
		assert.Equal(t, 3, attempts)
	})

	t.Run("context_cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cfg := RetryPolicy{MaxRetries: 5, BaseBackoff: time.Second, MaxBackoff: time.Second}

		attempts := 0
		err := Retry(ctx, cfg, func() error {
			attempts++
			cancel()
			return errors.New("failed")
		}, nil)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	})
}
