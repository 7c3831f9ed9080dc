package domain

// CircuitState is the state of a per-upstream circuit breaker.
type CircuitState string

// Circuit breaker states.
const (
	// CircuitClosed lets every call through.
	CircuitClosed CircuitState = "closed"

	// CircuitOpen rejects every call until the cooldown elapses.
	CircuitOpen CircuitState = "open"

	// CircuitHalfOpen lets a single trial call through.
	CircuitHalfOpen CircuitState = "half_open"
)

// String returns the string representation.
func (s CircuitState) String() string {
	return string(s)
}

// ErrorClass is how the resilience layer treats a failed call.
type ErrorClass int

// Error classes.
const (
	// ClassTransient failures are retried and count against the breaker.
	ClassTransient ErrorClass = iota

	// ClassPermanent failures are returned at once and do not trip the breaker.
	ClassPermanent

	// ClassCircuitOpen means the breaker rejected the call.
	ClassCircuitOpen

	// ClassCancelled means the caller's context ended.
	ClassCancelled
)

// String returns the string representation.
func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	case ClassCircuitOpen:
		return "circuit_open"
	case ClassCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Reason maps the class to the FailureReason recorded on a FetchResult.
func (c ErrorClass) Reason() FailureReason {
	switch c {
	case ClassTransient:
		return ReasonTransient
	case ClassCircuitOpen:
		return ReasonCircuitOpen
	case ClassCancelled:
		return ReasonCancelled
	default:
		return ReasonPermanent
	}
}
