package resilience

import (
	"fmt"
	"time"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// CircuitOpenError is returned when the breaker rejects a call.
type CircuitOpenError struct {
	Upstream string
	Until    time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("resilience: circuit open for %s until %s", e.Upstream, e.Until.Format(time.RFC3339))
}

// Unwrap lets errors.Is match domain.ErrCircuitOpen.
func (e *CircuitOpenError) Unwrap() error {
	return domain.ErrCircuitOpen
}

// FetchError is the terminal error of a Client call.
type FetchError struct {
	Reason   domain.FailureReason
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("resilience: %s after %d attempt(s): %v", e.Reason, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
