package util

import (
	"context"
	"time"
)

// Retry runs fn until it succeeds, the attempts are spent, or the context is
// canceled. The delay before each retry starts at baseDelay and doubles.
// The error from the last attempt is returned when all attempts fail.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delay := baseDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || attempt == maxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
