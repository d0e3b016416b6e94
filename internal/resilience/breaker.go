package resilience

import (
	"context"
	"sync"
	"time"

	"alfredoptarigan/resume-matcher/internal/apperrors"
)

type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// CircuitBreaker guards a single external dependency. Each dependency owns its
// own instance; state is never shared between dependencies.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration

	mu              sync.Mutex
	state           BreakerState
	failureCount    int
	lastFailureTime time.Time

	now func() time.Time
}

func NewCircuitBreaker(name string, failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
		now:              time.Now,
	}
}

// Execute runs fn through the breaker. While the breaker is open, the call is
// rejected immediately without invoking fn. Once the recovery timeout elapses
// a single trial call is permitted; its outcome decides the next state.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailureTime) < cb.recoveryTimeout {
			return apperrors.New(apperrors.KindExternalService, "circuit breaker is open for "+cb.name).
				With("service_name", cb.name).
				With("retry_after", cb.recoveryTimeout.Seconds())
		}
		cb.state = StateHalfOpen
	}
	return nil
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.failureCount = 0
		cb.state = StateClosed
		return
	}

	cb.failureCount++
	cb.lastFailureTime = cb.now()

	if cb.state == StateHalfOpen || cb.failureCount >= cb.failureThreshold {
		cb.state = StateOpen
	}
}

func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
