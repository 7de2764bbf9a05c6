// Package backoff provides the exponential retry helper used by the module
// registry's container build/start retries.
package backoff

import (
	"context"
	"time"
)

// Config parameterizes an exponential backoff retry loop: Attempts total
// tries (1 initial + Attempts-1 retries), starting at BaseDelay and
// doubling each time.
type Config struct {
	Attempts  int
	BaseDelay time.Duration
}

// Delay returns the backoff delay before retry attempt i (1-indexed: i=1 is
// the delay before the first retry, not the initial attempt).
func (c Config) Delay(i int) time.Duration {
	return time.Duration(1<<uint(i-1)) * c.BaseDelay
}

// Retry calls fn up to c.Attempts times, sleeping Delay(i) between
// attempts, and returns the last error if every attempt fails. fn is not
// called again once it returns a nil error. ctx cancellation aborts
// immediately, including during a backoff sleep.
func Retry(ctx context.Context, c Config, fn func(ctx context.Context) error) error {
	attempts := c.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.Delay(i)):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}
