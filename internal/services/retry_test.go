package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(attempts int) (*RetryExecutor, *[]time.Duration) {
	var slept []time.Duration
	r := NewRetryExecutor(RetryPolicy{MaxAttempts: attempts, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second})
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return r, &slept
}

func TestRetryExhaustion(t *testing.T) {
	r, slept := newTestExecutor(3)
	calls := 0
	boom := errors.New("geocoder timeout")

	_, err := r.Execute(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *slept)
}

func TestRetrySucceedsOnSecondAttempt(t *testing.T) {
	r, _ := newTestExecutor(3)
	calls := 0

	got, err := r.Execute(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
}

func TestRetryReturnsLastError(t *testing.T) {
	r, _ := newTestExecutor(2)
	calls := 0

	_, err := r.Execute(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("first")
		}
		return "", errors.New("second")
	})

	require.Error(t, err)
	assert.Equal(t, "second", err.Error())
}

func TestRetryPolicyDelayIsCapped(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}

	assert.Equal(t, 500*time.Millisecond, p.Delay(1))
	assert.Equal(t, time.Second, p.Delay(2))
	assert.Equal(t, 2*time.Second, p.Delay(3))
	assert.Equal(t, 4*time.Second, p.Delay(4))
	assert.Equal(t, 5*time.Second, p.Delay(5))
	assert.Equal(t, 5*time.Second, p.Delay(60))
	assert.Zero(t, p.Delay(0))
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	r := NewRetryExecutor(RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := r.Execute(ctx, func(ctx context.Context) (string, error) {
		calls++
		cancel()
		return "", errors.New("down")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorContains(t, err, "retry aborted")
}

func TestRetryBudgetIsPerCall(t *testing.T) {
	r, _ := newTestExecutor(2)
	for i := 0; i < 3; i++ {
		calls := 0
		_, _ = r.Execute(context.Background(), func(ctx context.Context) (string, error) {
			calls++
			return "", errors.New("fail")
		})
		assert.Equal(t, 2, calls)
	}
}
