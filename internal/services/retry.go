package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/logger"
)

// RetryPolicy bounds a retry loop. Delays grow as
// min(BaseDelay * 2^(attempt-1), MaxDelay) with attempt starting at 1.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is three attempts starting at 500ms, capped at 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// Delay returns the wait after the given failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	shift := attempt - 1
	if shift > 30 {
		shift = 30
	}
	d := p.BaseDelay << uint(shift)
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		return p.MaxDelay
	}
	return d
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// RetryExecutor runs fallible operations under a RetryPolicy. It keeps no
// state between calls: every Execute gets the full budget.
type RetryExecutor struct {
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryExecutor creates an executor for policy.
func NewRetryExecutor(policy RetryPolicy) *RetryExecutor {
	return &RetryExecutor{policy: policy, sleep: sleepContext}
}

// Policy returns the configured policy.
func (r *RetryExecutor) Policy() RetryPolicy { return r.policy }

// Execute retries op on any error and returns the last error once the
// attempts are used up.
func (r *RetryExecutor) Execute(ctx context.Context, op func(ctx context.Context) (string, error)) (string, error) {
	return Retry(ctx, r, op)
}

// Retry is the generic form of RetryExecutor.Execute.
func Retry[T any](ctx context.Context, r *RetryExecutor, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	maxAttempts := r.policy.attempts()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		delay := r.policy.Delay(attempt)
		logger.Warn().Err(err).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("backoff", delay).
			Msg("Operation failed, retrying")

		if err := r.sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%w (retry aborted: %v)", lastErr, err)
		}
	}

	return zero, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
