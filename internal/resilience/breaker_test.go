package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/resume-matcher/internal/apperrors"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("embedding", 3, time.Minute)
	ctx := context.Background()
	boom := errors.New("model down")

	calls := 0
	failing := func(ctx context.Context) error {
		calls++
		return boom
	}

	for i := 0; i < 3; i++ {
		err := cb.Execute(ctx, failing)
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, 3, calls)

	// Open breaker rejects without invoking the dependency.
	err := cb.Execute(ctx, failing)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindExternalService))
	assert.Equal(t, 3, calls)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("llm", 2, time.Minute)
	ctx := context.Background()

	current := time.Now()
	cb.now = func() time.Time { return current }

	boom := errors.New("down")
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error { return boom })
	}
	require.Equal(t, StateOpen, cb.State())

	// Recovery window not yet elapsed: still rejected.
	err := cb.Execute(ctx, func(ctx context.Context) error { return nil })
	require.Error(t, err)

	// After the window one trial call is permitted and success closes it.
	current = current.Add(2 * time.Minute)
	trialCalls := 0
	err = cb.Execute(ctx, func(ctx context.Context) error {
		trialCalls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, trialCalls)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("llm", 1, time.Minute)
	ctx := context.Background()

	current := time.Now()
	cb.now = func() time.Time { return current }

	boom := errors.New("down")
	_ = cb.Execute(ctx, func(ctx context.Context) error { return boom })
	require.Equal(t, StateOpen, cb.State())

	current = current.Add(2 * time.Minute)
	err := cb.Execute(ctx, func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("embedding", 3, time.Minute)
	ctx := context.Background()
	boom := errors.New("flaky")

	_ = cb.Execute(ctx, func(ctx context.Context) error { return boom })
	_ = cb.Execute(ctx, func(ctx context.Context) error { return boom })
	require.NoError(t, cb.Execute(ctx, func(ctx context.Context) error { return nil }))

	// Two more failures must not open the breaker: the count was reset.
	_ = cb.Execute(ctx, func(ctx context.Context) error { return boom })
	_ = cb.Execute(ctx, func(ctx context.Context) error { return boom })
	assert.Equal(t, StateClosed, cb.State())
}
