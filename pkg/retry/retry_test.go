package retry

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var errFlaky = errors.New("connection reset by peer (simulated)")

func transientThenSucceed(failures int) func(ctx context.Context) error {
	calls := 0
	return func(ctx context.Context) error {
		calls++
		if calls <= failures {
			return syscall.ECONNRESET
		}
		return nil
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	cfg := Config{MaxAttempts: 3, BaseDelay: time.Millisecond}
	err := Do(context.Background(), cfg, "op.noop", transientThenSucceed(0))
	assert.NoError(t, err)
}

func TestDoRetriesTransientAndAppliesBackoff(t *testing.T) {
	cfg := Config{MaxAttempts: 3, BaseDelay: 20 * time.Millisecond}

	start := time.Now()
	err := Do(context.Background(), cfg, "op.flaky", transientThenSucceed(2))
	elapsed := time.Since(start)

	require.NoError(t, err)
	// Two transient failures cost base*1 + base*2 of backoff.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond,
		"linear backoff must actually be applied before each retry")
}

func TestDoExhaustsRetryBudget(t *testing.T) {
	cfg := Config{MaxAttempts: 3, BaseDelay: time.Millisecond}
	calls := 0

	err := Do(context.Background(), cfg, "op.down", func(ctx context.Context) error {
		calls++
		return errFlaky
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "op.down", exhausted.Label)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, errFlaky)
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	cfg := Config{MaxAttempts: 3, BaseDelay: time.Millisecond}

	tests := []struct {
		name string
		err  error
	}{
		{name: "record not found", err: gorm.ErrRecordNotFound},
		{name: "duplicate key", err: gorm.ErrDuplicatedKey},
		{name: "marked permanent", err: MarkPermanent(errors.New("status conflict"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), cfg, "op.permanent", func(ctx context.Context) error {
				calls++
				return tt.err
			})
			require.Error(t, err)
			assert.Equal(t, 1, calls, "permanent errors must not consume retry budget")
			var exhausted *ExhaustedError
			assert.False(t, errors.As(err, &exhausted))
		})
	}
}

func TestDoUnwrapsMarkedPermanentErrors(t *testing.T) {
	sentinel := errors.New("transition rejected")
	err := Do(context.Background(), DefaultConfig(), "op.cas", func(ctx context.Context) error {
		return MarkPermanent(sentinel)
	})
	assert.Equal(t, sentinel, err)
}

func TestDoStopsOnContextCancel(t *testing.T) {
	cfg := Config{MaxAttempts: 5, BaseDelay: time.Second}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, "op.cancelled", func(ctx context.Context) error {
			return errFlaky
		})
	}()
	cancel()

	select {
	case err := <-done:
		var exhausted *ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, "op.cancelled", exhausted.Label)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Do did not return promptly after context cancellation")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class Class
	}{
		{name: "not found is permanent", err: gorm.ErrRecordNotFound, class: Permanent},
		{name: "duplicate key is permanent", err: gorm.ErrDuplicatedKey, class: Permanent},
		{name: "cancelled context is permanent", err: context.Canceled, class: Permanent},
		{name: "deadline is transient", err: context.DeadlineExceeded, class: Transient},
		{name: "conn refused is transient", err: syscall.ECONNREFUSED, class: Transient},
		{name: "unknown defaults to transient", err: errors.New("mystery"), class: Transient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.class, Classify(tt.err))
		})
	}
}
