// Package resilience wraps upstream HTTP calls with admission control,
// retries, circuit breaking, response caching and in-flight dedup.
//
// A Client is built per upstream. Its RateLimiter and CircuitBreaker are
// owned by that Client and shared by every worker using it. A single
// ResponseCache may be shared across Clients since fingerprints include
// the upstream name.
//
// The package knows nothing about Confluence or Jira. Errors are classified
// through small interfaces (HTTPStatus, RetryAfter, Timeout) that the
// transport's error types implement.
package resilience
