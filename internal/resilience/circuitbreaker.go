// Package resilience generalizes the circuit-breaker and backoff-retry
// pattern the teacher repo built for its Anthropic API client
// (internal/ai/retry.go) into a dependency-free primitive usable by any
// component that calls a flaky external resource: the auto-fix engine's
// LLM oracle, and the gates package's audit-trail writer during disk
// contention.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen is returned by Allow when the circuit is open.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// CircuitBreaker prevents cascading failures by failing fast once a
// resource has crossed a failure threshold, then periodically probing
// for recovery.
type CircuitBreaker struct {
	mu sync.Mutex

	state            CircuitState
	failureCount     int
	successCount     int
	lastFailureTime  time.Time
	lastStateChange  time.Time
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
}

// NewCircuitBreaker constructs a CircuitBreaker in the closed state.
func NewCircuitBreaker(failureThreshold, successThreshold int, openTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            CircuitClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
		lastStateChange:  time.Now(),
	}
}

// Allow reports whether a request should proceed, transitioning the
// breaker from open to half-open once the open timeout has elapsed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return nil
	case CircuitOpen:
		if time.Since(cb.lastFailureTime) > cb.openTimeout {
			cb.transitionTo(CircuitHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	case CircuitHalfOpen:
		return nil
	default:
		return ErrCircuitOpen
	}
}

// RecordSuccess reports a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount = 0
	case CircuitHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.transitionTo(CircuitClosed)
		}
	}
}

// RecordFailure reports a failed call, weighted by weight (use 1 for a
// normal failure, higher for failures that should trip the circuit
// faster, e.g. rate-limit responses).
func (cb *CircuitBreaker) RecordFailure(weight int) {
	if weight < 1 {
		weight = 1
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = time.Now()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount += weight
		if cb.failureCount >= cb.failureThreshold {
			cb.transitionTo(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.transitionTo(CircuitOpen)
	}
}

// State returns the current state (for monitoring/tests).
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// transitionTo must be called with cb.mu held.
func (cb *CircuitBreaker) transitionTo(s CircuitState) {
	cb.state = s
	cb.successCount = 0
	if s == CircuitClosed {
		cb.failureCount = 0
	}
	cb.lastStateChange = time.Now()
}

// RetryConfig configures Do's backoff schedule.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	Timeout           time.Duration
}

// DefaultRetryConfig mirrors the teacher's AI-call defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Timeout:           60 * time.Second,
	}
}

// Retrier pairs a RetryConfig with an optional CircuitBreaker and
// executes operations with exponential backoff.
type Retrier struct {
	Config  RetryConfig
	Breaker *CircuitBreaker
}

// NewRetrier constructs a Retrier with the given config and an enabled
// circuit breaker using sane defaults.
func NewRetrier(cfg RetryConfig) *Retrier {
	return &Retrier{
		Config:  cfg,
		Breaker: NewCircuitBreaker(5, 2, 30*time.Second),
	}
}

// Do runs fn with retry/backoff and circuit-breaker protection. A
// non-retriable error returned by fn (wrapped in NonRetriableError)
// fails immediately without consuming a retry.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	var lastErr error
	backoff := r.Config.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	for attempt := 0; attempt <= r.Config.MaxRetries; attempt++ {
		if r.Breaker != nil {
			if err := r.Breaker.Allow(); err != nil {
				return fmt.Errorf("%s: %w", operation, err)
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if r.Config.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.Config.Timeout)
		}
		err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			if r.Breaker != nil {
				r.Breaker.RecordSuccess()
			}
			return nil
		}

		lastErr = err
		var nonRetriable NonRetriableError
		if errors.As(err, &nonRetriable) {
			if r.Breaker != nil {
				r.Breaker.RecordFailure(1)
			}
			return fmt.Errorf("%s: %w", operation, err)
		}

		if r.Breaker != nil {
			r.Breaker.RecordFailure(1)
		}

		if attempt == r.Config.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: context canceled: %w", operation, ctx.Err())
		}

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * r.Config.BackoffMultiplier)
			if r.Config.MaxBackoff > 0 && backoff > r.Config.MaxBackoff {
				backoff = r.Config.MaxBackoff
			}
		case <-ctx.Done():
			return fmt.Errorf("%s: context canceled during backoff: %w", operation, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, r.Config.MaxRetries+1, lastErr)
}

// NonRetriableError wraps an error to signal Do that retrying is
// pointless (e.g. auth failures, malformed requests).
type NonRetriableError struct{ Err error }

func (e NonRetriableError) Error() string { return e.Err.Error() }
func (e NonRetriableError) Unwrap() error { return e.Err }
