package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown source kind, profile or output format.
	ErrUnsupportedType = errors.New("unsupported type")

	// Export Errors.

	// ErrNoContainers indicates enumeration found no space or project with matching items.
	ErrNoContainers = errors.New("no containers match label")

	// ErrItemSkipped is returned by a connector for an item that exists but must not be exported.
	ErrItemSkipped = errors.New("item skipped")

	// Checkpoint Errors.

	// ErrCheckpointCorrupt indicates a stored checkpoint could not be decoded or violates its invariants.
	ErrCheckpointCorrupt = errors.New("checkpoint corrupt")

	// ErrCheckpointLocked indicates another process already holds the run.
	ErrCheckpointLocked = errors.New("checkpoint locked by another run")

	// Upstream Errors.

	// ErrCircuitOpen indicates the upstream is considered down and calls fail fast.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrRateLimitTimeout indicates a rate limit token was not granted in time.
	ErrRateLimitTimeout = errors.New("rate limit wait timed out")

	// ErrRateLimited indicates the upstream rejected a call with 429.
	ErrRateLimited = errors.New("rate limited")

	// Authentication Errors.

	// ErrAuthRequired indicates no credentials are configured for any upstream.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthInvalid indicates the upstream rejected the configured credentials.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrConnectorValidation indicates a connectivity check failed.
	ErrConnectorValidation = errors.New("connector validation failed")
)
