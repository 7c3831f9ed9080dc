package resilience

import (
	"sync"
	"time"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// CircuitBreaker tracks consecutive failures against one upstream.
//
// Closed lets every call through. FailureThreshold consecutive failures open
// the circuit. After CooldownPeriod the next Allow moves to HalfOpen and lets
// exactly one trial through; its outcome closes or reopens the circuit.
type CircuitBreaker struct {
	mu        sync.Mutex
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	onChange  func(name string, from, to domain.CircuitState)

	state    domain.CircuitState
	failures int
	openedAt time.Time
	trial    bool
}

// BreakerOption configures a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithBreakerClock replaces time.Now.
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *CircuitBreaker) { b.now = now }
}

// WithStateChange registers a callback invoked on every transition.
// It runs with the breaker lock held and must not call back into the breaker.
func WithStateChange(fn func(name string, from, to domain.CircuitState)) BreakerOption {
	return func(b *CircuitBreaker) { b.onChange = fn }
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(name string, cfg domain.CircuitBreakerConfig, opts ...BreakerOption) *CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold < 1 {
		threshold = 1
	}
	b := &CircuitBreaker{
		name:      name,
		threshold: threshold,
		cooldown:  cfg.CooldownPeriod,
		now:       time.Now,
		state:     domain.CircuitClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether a call may proceed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case domain.CircuitClosed:
		return true
	case domain.CircuitOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.transition(domain.CircuitHalfOpen)
		b.trial = true
		return true
	case domain.CircuitHalfOpen:
		if b.trial {
			return false
		}
		b.trial = true
		return true
	default:
		return false
	}
}

// RecordSuccess closes the circuit and resets the failure count.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.trial = false
	if b.state != domain.CircuitClosed {
		b.transition(domain.CircuitClosed)
	}
}

// RecordFailure counts a failure, opening the circuit at the threshold
// or immediately when the HalfOpen trial fails.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case domain.CircuitHalfOpen:
		b.trial = false
		b.openedAt = b.now()
		b.transition(domain.CircuitOpen)
	case domain.CircuitClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.openedAt = b.now()
			b.transition(domain.CircuitOpen)
		}
	case domain.CircuitOpen:
		b.openedAt = b.now()
	}
}

// Abandon releases a HalfOpen trial whose call ended without an outcome,
// such as a cancelled context.
func (b *CircuitBreaker) Abandon() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == domain.CircuitHalfOpen {
		b.trial = false
	}
}

// State returns the current state without advancing it.
func (b *CircuitBreaker) State() domain.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// OpenUntil returns when an open circuit will allow a trial. Zero if not open.
func (b *CircuitBreaker) OpenUntil() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != domain.CircuitOpen {
		return time.Time{}
	}
	return b.openedAt.Add(b.cooldown)
}

// Name returns the upstream name.
func (b *CircuitBreaker) Name() string {
	return b.name
}

func (b *CircuitBreaker) transition(to domain.CircuitState) {
	from := b.state
	b.state = to
	if to == domain.CircuitClosed {
		b.failures = 0
	}
	if b.onChange != nil && from != to {
		b.onChange(b.name, from, to)
	}
}
