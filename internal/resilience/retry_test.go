package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/resume-matcher/internal/apperrors"
)

func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Factor:     2,
		Retryable:  apperrors.Transient,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastPolicy(2), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return apperrors.New(apperrors.KindExternalService, "transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryReturnsLastErrorOnExhaustion(t *testing.T) {
	attempts := 0
	last := apperrors.New(apperrors.KindExternalService, "still down")
	err := Retry(context.Background(), fastPolicy(2), func(ctx context.Context) error {
		attempts++
		return last
	})

	assert.ErrorIs(t, err, last)
	assert.Equal(t, 3, attempts)
}

func TestRetryDoesNotRetryNonTransient(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastPolicy(5), func(ctx context.Context) error {
		attempts++
		return apperrors.New(apperrors.KindValidation, "bad input")
	})

	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.Equal(t, 1, attempts)
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	policy := fastPolicy(5)
	policy.BaseDelay = 50 * time.Millisecond
	policy.MaxDelay = 50 * time.Millisecond

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, policy, func(ctx context.Context) error {
		attempts++
		return apperrors.New(apperrors.KindExternalService, "transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestRetryDelayCapped(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 3 * time.Second, Factor: 2}
	assert.Equal(t, time.Second, p.delay(0))
	assert.Equal(t, 2*time.Second, p.delay(1))
	assert.Equal(t, 3*time.Second, p.delay(2))
	assert.Equal(t, 3*time.Second, p.delay(10))
}
