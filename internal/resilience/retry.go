package resilience

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// jitterFactor spreads each delay over [0.5, 1.5] of its nominal value.
const jitterFactor = 0.5

// Decision is the outcome of a retry decision.
type Decision struct {
	// Retry is true when the call should be repeated after Delay.
	Retry bool

	// Delay is the wait before the next attempt.
	Delay time.Duration

	// Reason is set when giving up.
	Reason domain.FailureReason
}

// RetryAfterDelay returns a Retry decision.
func RetryAfterDelay(d time.Duration) Decision {
	return Decision{Retry: true, Delay: d}
}

// GiveUp returns a terminal decision.
func GiveUp(reason domain.FailureReason) Decision {
	return Decision{Reason: reason}
}

// RetryPolicy decides whether and when a failed call is repeated.
type RetryPolicy struct {
	cfg       domain.RetryConfig
	retryable map[int]bool
}

// NewRetryPolicy creates a retry policy from configuration.
func NewRetryPolicy(cfg domain.RetryConfig) *RetryPolicy {
	codes := cfg.RetryOnStatusCodes
	if len(codes) == 0 {
		codes = domain.DefaultRetryStatusCodes()
	}
	if cfg.ExponentialBase < 1 {
		cfg.ExponentialBase = 2
	}
	return &RetryPolicy{cfg: cfg, retryable: statusSet(codes)}
}

// MaxAttempts returns the first attempt plus every allowed retry.
func (p *RetryPolicy) MaxAttempts() int {
	return p.cfg.MaxRetries + 1
}

// Classify maps an error to its handling class using the configured statuses.
func (p *RetryPolicy) Classify(err error) domain.ErrorClass {
	return classify(err, p.retryable)
}

// Schedule returns a fresh delay sequence for one call.
// Delays grow by ExponentialBase from InitialDelay and are capped at MaxDelay
// before jitter is applied.
func (p *RetryPolicy) Schedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialDelay
	b.Multiplier = p.cfg.ExponentialBase
	b.MaxInterval = p.cfg.MaxDelay
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0
	if p.cfg.Jitter {
		b.RandomizationFactor = jitterFactor
	}
	b.Reset()
	return b
}

// Delay returns the nominal delay before retry n (1-indexed) without jitter.
func (p *RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := float64(p.cfg.InitialDelay) * math.Pow(p.cfg.ExponentialBase, float64(n-1))
	if d > float64(p.cfg.MaxDelay) || math.IsInf(d, 0) {
		return p.cfg.MaxDelay
	}
	return time.Duration(d)
}

// Decide returns what to do after attempt (1-indexed) failed with err.
func (p *RetryPolicy) Decide(attempt int, err error, schedule backoff.BackOff) Decision {
	class := p.Classify(err)
	if class != domain.ClassTransient {
		return GiveUp(class.Reason())
	}
	if attempt >= p.MaxAttempts() {
		return GiveUp(domain.ReasonTransient)
	}

	delay := schedule.NextBackOff()
	if delay == backoff.Stop {
		return GiveUp(domain.ReasonTransient)
	}
	if hint := retryAfter(err); hint > delay {
		delay = max(delay, min(hint, p.cfg.MaxDelay))
	}
	return RetryAfterDelay(delay)
}
