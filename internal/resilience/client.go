package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/logger"
	"github.com/custodia-labs/ctxexport/internal/telemetry"
)

// Performer executes a single upstream call with no retries.
// Non-2xx answers are returned as errors implementing StatusCoder.
type Performer interface {
	Perform(ctx context.Context, req *Request) (*Response, error)
}

// PerformerFunc adapts a function to Performer.
type PerformerFunc func(ctx context.Context, req *Request) (*Response, error)

// Perform calls f.
func (f PerformerFunc) Perform(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Sleeper waits for d or until ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ClientConfig holds the per-upstream resilience settings.
type ClientConfig struct {
	Upstream       string
	Retry          domain.RetryConfig
	RateLimit      domain.RateLimitConfig
	CircuitBreaker domain.CircuitBreakerConfig
}

// ClientStats counts Client activity.
type ClientStats struct {
	Calls             int64
	CacheHits         int64
	Attempts          int64
	Retries           int64
	CircuitRejections int64
	Shared            int64
	Failures          int64
}

// Option configures a Client.
type Option func(*Client)

// WithCache enables response caching.
func WithCache(cache *ResponseCache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithSleeper replaces the backoff wait.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithBreaker replaces the breaker built from configuration.
func WithBreaker(b *CircuitBreaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithRateLimiter replaces the limiter built from configuration.
func WithRateLimiter(l *RateLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// Client composes cache, dedup, breaker, limiter and retries around a Performer.
type Client struct {
	upstream  string
	performer Performer
	limiter   *RateLimiter
	retry     *RetryPolicy
	breaker   *CircuitBreaker
	cache     *ResponseCache
	sleep     Sleeper
	tracer    trace.Tracer
	group     singleflight.Group

	calls      atomic.Int64
	cacheHits  atomic.Int64
	attempts   atomic.Int64
	retries    atomic.Int64
	rejections atomic.Int64
	shared     atomic.Int64
	failures   atomic.Int64
}

// NewClient creates a Client for one upstream.
func NewClient(p Performer, cfg ClientConfig, opts ...Option) *Client {
	c := &Client{
		upstream:  cfg.Upstream,
		performer: p,
		retry:     NewRetryPolicy(cfg.Retry),
		sleep:     sleepContext,
		tracer:    telemetry.Tracer("resilience"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = NewRateLimiter(cfg.RateLimit)
	}
	if c.breaker == nil {
		c.breaker = NewCircuitBreaker(cfg.Upstream, cfg.CircuitBreaker, WithStateChange(logStateChange))
	}
	return c
}

func logStateChange(name string, from, to domain.CircuitState) {
	logger.Warn("circuit %s: %s -> %s", name, from, to)
}

// Upstream returns the upstream name.
func (c *Client) Upstream() string {
	return c.upstream
}

// Breaker returns the client's circuit breaker.
func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

// Stats returns a snapshot of the counters.
func (c *Client) Stats() ClientStats {
	return ClientStats{
		Calls:             c.calls.Load(),
		CacheHits:         c.cacheHits.Load(),
		Attempts:          c.attempts.Load(),
		Retries:           c.retries.Load(),
		CircuitRejections: c.rejections.Load(),
		Shared:            c.shared.Load(),
		Failures:          c.failures.Load(),
	}
}

// Do performs req with caching, dedup, circuit breaking, rate limiting and retries.
// Failures are returned as *FetchError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	c.calls.Add(1)
	if req.Upstream == "" {
		req.Upstream = c.upstream
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	fp := Fingerprint(req)

	if c.cache != nil {
		if resp, ok := c.cache.Get(fp); ok {
			c.cacheHits.Add(1)
			logger.Debug("%s cache hit %s", c.upstream, req.Path)
			return resp, nil
		}
	}

	for {
		v, err, shared := c.group.Do(fp, func() (any, error) {
			return c.do(ctx, req, fp)
		})
		if shared {
			c.shared.Add(1)
		}
		// A joined flight runs under its leader's context. If the leader
		// was cancelled and this caller was not, fly again.
		if err != nil && shared && ctx.Err() == nil && Reason(err) == domain.ReasonCancelled {
			logger.Debug("%s %s: joined call was cancelled by its leader, retrying", c.upstream, req.Path)
			continue
		}
		if err != nil {
			return nil, err
		}
		return v.(*Response), nil
	}
}

func (c *Client) do(ctx context.Context, req *Request, fp string) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "resilience.Do",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("upstream", c.upstream),
			attribute.String("http.method", req.Method),
			attribute.String("http.path", req.Path),
		),
	)
	defer span.End()

	resp, attempts, err := c.loop(ctx, req, fp)
	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		c.failures.Add(1)
		telemetry.RecordError(span, err)
		return nil, err
	}
	return resp, nil
}

func (c *Client) loop(ctx context.Context, req *Request, fp string) (*Response, int, error) {
	schedule := c.retry.Schedule()
	performed := 0
	counter := attemptCounterFrom(ctx)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, performed, c.fail(domain.ReasonCancelled, performed, err)
		}

		// 1. Breaker
		if !c.breaker.Allow() {
			c.rejections.Add(1)
			openErr := &CircuitOpenError{Upstream: c.upstream, Until: c.breaker.OpenUntil()}
			return nil, performed, c.fail(domain.ReasonCircuitOpen, performed, openErr)
		}

		// 2. Rate limit
		var callErr error
		if err := c.limiter.Acquire(ctx); err != nil {
			c.breaker.Abandon()
			if ctx.Err() != nil {
				return nil, performed, c.fail(domain.ReasonCancelled, performed, err)
			}
			callErr = err
		} else {
			// 3. Call
			performed++
			c.attempts.Add(1)
			if counter != nil {
				counter.n.Add(1)
			}

			resp, err := c.performer.Perform(ctx, req)
			if err == nil {
				c.breaker.RecordSuccess()
				if c.cache != nil {
					c.cache.Put(fp, resp, 0)
				}
				return resp, performed, nil
			}
			callErr = err
			c.record(ctx, callErr)
		}

		// 4. Decide
		decision := c.retry.Decide(attempt, callErr, schedule)
		if !decision.Retry {
			return nil, performed, c.fail(decision.Reason, performed, callErr)
		}

		c.retries.Add(1)
		logger.Debug("%s %s attempt %d failed, retrying in %s: %v", c.upstream, req.Path, attempt, decision.Delay, callErr)
		if err := c.sleep(ctx, decision.Delay); err != nil {
			return nil, performed, c.fail(domain.ReasonCancelled, performed, err)
		}
	}
}

// record reports a performed call's failure to the breaker and limiter.
func (c *Client) record(ctx context.Context, err error) {
	if ctx.Err() != nil {
		c.breaker.Abandon()
		return
	}
	switch c.retry.Classify(err) {
	case domain.ClassTransient:
		c.breaker.RecordFailure()
		if httpStatus(err) == http.StatusTooManyRequests {
			c.limiter.Pause(retryAfter(err))
		}
	case domain.ClassPermanent:
		// The upstream answered; it is healthy even if the item is not.
		if httpStatus(err) != 0 {
			c.breaker.RecordSuccess()
		} else {
			c.breaker.Abandon()
		}
	default:
		c.breaker.Abandon()
	}
}

func (c *Client) fail(reason domain.FailureReason, attempts int, err error) error {
	if reason == domain.ReasonCancelled && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", context.Canceled, err)
	}
	return &FetchError{Reason: reason, Attempts: attempts, Err: err}
}

type attemptCounterKey struct{}

// AttemptCounter counts performed upstream calls made under a context.
type AttemptCounter struct {
	n atomic.Int64
}

// Count returns the number of performed calls.
func (a *AttemptCounter) Count() int {
	return int(a.n.Load())
}

// WithAttemptCounter returns a context whose Client calls are counted.
func WithAttemptCounter(ctx context.Context) (context.Context, *AttemptCounter) {
	counter := &AttemptCounter{}
	return context.WithValue(ctx, attemptCounterKey{}, counter), counter
}

func attemptCounterFrom(ctx context.Context) *AttemptCounter {
	counter, _ := ctx.Value(attemptCounterKey{}).(*AttemptCounter)
	return counter
}

// IsCircuitOpen reports whether err came from an open breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, domain.ErrCircuitOpen)
}

// Reason extracts the failure reason from a Client error.
func Reason(err error) domain.FailureReason {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return Classify(err).Reason()
}
