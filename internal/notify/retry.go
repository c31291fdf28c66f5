package notify

import (
	"context"
	"time"
)

// Retry executes fn with retries, backoff, and cancellation support.
//
// fn must return nil on success. Any non-nil error is treated as retryable.
// onRetry, when set, is called before each wait.
func Retry(
	ctx context.Context,
	policy RetryPolicy,
	fn func() error,
	onRetry func(attempt int, err error),
) error {
	var attempt int
	var backoff = policy.BaseBackoff

	for {
		err := fn()
		if err == nil {
			return nil
		}

		attempt++
		if attempt > policy.MaxRetries {
			return err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}

		delay := backoff
		if policy.JitterFn != nil {
			delay += policy.JitterFn(backoff)
		}
		if policy.MaxBackoff > 0 && delay > policy.MaxBackoff {
			delay = policy.MaxBackoff
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
			backoff *= 2
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
