package transfer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3desk/s3desk/pkg/logging"
)

func TestBackoffDelaySchedule(t *testing.T) {
	assert.Zero(t, backoffDelay(0), "first retry is immediate")

	for failed, base := range map[int]float64{1: 1, 2: 4} {
		for i := 0; i < 20; i++ {
			d := backoffDelay(failed).Seconds()
			assert.GreaterOrEqual(t, d, base, "after failed attempt %d", failed)
			assert.LessOrEqual(t, d, base*1.5, "after failed attempt %d", failed)
		}
	}
}

func TestWithRetryFirstRetryIsImmediate(t *testing.T) {
	calls := 0
	start := time.Now()
	err := withRetry(logging.NewNopLogger(), nil, "test op", func() error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	// The zero delay belongs after the first failure, so recovering on the
	// second attempt must not wait out the 1s backoff step.
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := withRetry(logging.NewNopLogger(), nil, "test op", func() error {
		calls++
		return errors.New("persistent")
	})
	require.Error(t, err)
	assert.Equal(t, MaxRetryAttempts, calls)
	assert.Contains(t, err.Error(), "test op failed after 3 attempts")
}

func TestWithRetryStopShortCircuits(t *testing.T) {
	calls := 0
	err := withRetry(logging.NewNopLogger(), func() bool { return true }, "test op", func() error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.Zero(t, calls)
	assert.Contains(t, err.Error(), "interrupted")
}
