package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// RateLimiter is a token bucket in front of one upstream.
// Tokens refill continuously at RequestsPerSecond up to BurstSize.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	timeout time.Duration
}

// NewRateLimiter creates a rate limiter from configuration.
func NewRateLimiter(cfg domain.RateLimitConfig) *RateLimiter {
	burst := cfg.BurstSize
	if burst < 1 {
		burst = 1
	}
	timeout := cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		timeout: timeout,
	}
}

// TryAcquire takes a token if one is available without blocking.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		return false
	}
	return r.limiter.Allow()
}

// Acquire blocks until a token is available.
// Returns domain.ErrRateLimitTimeout if none is granted within the acquire
// timeout, or the context error if ctx ends first.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Honour any pause set after a 429.
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return r.waitErr(ctx, waitCtx.Err())
		case <-timer.C:
		}
	}

	if err := r.limiter.Wait(waitCtx); err != nil {
		return r.waitErr(ctx, err)
	}
	return nil
}

func (r *RateLimiter) waitErr(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	return fmt.Errorf("%w after %s: %v", domain.ErrRateLimitTimeout, r.timeout, err)
}

// Pause stops granting tokens for d. Used when the upstream answers 429.
func (r *RateLimiter) Pause(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	until := time.Now().Add(d)
	if until.After(r.retryAt) {
		r.retryAt = until
	}
}

// Tokens returns the tokens currently available.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
