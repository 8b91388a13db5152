package transfer

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/s3desk/s3desk/pkg/logging"
)

// backoffDelay returns the wait after failed attempt (0-indexed): the
// first retry is immediate, then exponential base-4 seconds with up to 50%
// jitter.
func backoffDelay(failedAttempt int) time.Duration {
	if failedAttempt == 0 {
		return 0
	}
	base := math.Pow(4, float64(failedAttempt-1))
	jitter := rand.Float64() * base * 0.5
	return time.Duration((base + jitter) * float64(time.Second))
}

// withRetry runs operation up to MaxRetryAttempts times, sleeping the
// backoff schedule after each failure. stop is polled before each attempt
// so a paused or cancelled worker does not sit out a long backoff for
// nothing.
func withRetry(logger logging.Interface, stop func() bool, what string, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt < MaxRetryAttempts; attempt++ {
		if stop != nil && stop() {
			if lastErr != nil {
				return lastErr
			}
			return fmt.Errorf("%s interrupted", what)
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err
		logger.WithError(err).Warnf("%s failed (attempt %d of %d)", what, attempt+1, MaxRetryAttempts)

		if attempt < MaxRetryAttempts-1 {
			if delay := backoffDelay(attempt); delay > 0 {
				time.Sleep(delay)
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", what, MaxRetryAttempts, lastErr)
}
