package resilience

import (
	"context"
	"time"

	"alfredoptarigan/resume-matcher/internal/apperrors"
)

// RetryPolicy controls exponential backoff: delay for attempt n is
// min(BaseDelay * Factor^n, MaxDelay).
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Factor     float64

	// Retryable decides whether an error is worth another attempt. Nil means
	// retry only transient typed errors.
	Retryable func(error) bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   60 * time.Second,
		Factor:     2,
		Retryable:  apperrors.Transient,
	}
}

// Retry runs fn up to MaxRetries+1 times. Non-retryable errors and context
// cancellation abort immediately; exhausting retries returns the last error so
// the caller can apply its degradation path.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	retryable := policy.Retryable
	if retryable == nil {
		retryable = apperrors.Transient
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == policy.MaxRetries {
			return lastErr
		}

		delay := policy.delay(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	factor := p.Factor
	if factor <= 0 {
		factor = 2
	}
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= factor
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}
