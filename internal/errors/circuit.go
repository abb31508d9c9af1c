package errors

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	// StateClosed is the normal state where requests are allowed.
	StateClosed State = iota
	// StateOpen is when the circuit is tripped and requests are blocked.
	StateOpen
	// StateHalfOpen is when the circuit is testing if the backend recovered.
	StateHalfOpen
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker fails fast while a backend is known to be down.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithMaxFailures sets the number of consecutive failures before opening the circuit.
func WithMaxFailures(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.maxFailures = n
	}
}

// WithResetTimeout sets the time to wait before attempting recovery.
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.resetTimeout = d
	}
}

// NewCircuitBreaker creates a new circuit breaker with the given name.
// Default: 5 failures, 30 second reset timeout.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:         name,
		maxFailures:  5,
		resetTimeout: 30 * time.Second,
		state:        StateClosed,
	}

	for _, opt := range opts {
		opt(cb)
	}

	return cb
}

// Name returns the circuit breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// currentState must be called with the lock held.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && time.Since(cb.lastFailure) > cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) record(err error, countable bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.failures = 0
		cb.state = StateClosed
		return
	}
	if !countable {
		return
	}

	cb.failures++
	cb.lastFailure = time.Now()
	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// Execute runs fn through the circuit breaker.
// Returns ErrCircuitOpen without calling fn if the circuit is open.
// Only retryable failures count towards opening the circuit.
func Execute[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	cb.mu.Lock()
	switch cb.currentState() {
	case StateOpen:
		cb.mu.Unlock()
		var zero T
		return zero, ErrCircuitOpen
	case StateHalfOpen:
		cb.state = StateHalfOpen
	}
	cb.mu.Unlock()

	result, err := fn()
	cb.record(err, err != nil && IsRetryable(err))
	return result, err
}
