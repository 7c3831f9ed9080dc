package driven

import (
	"context"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// ConnectorFactory builds connectors for a run.
type ConnectorFactory interface {
	// Available returns the upstreams that have a configured base URL.
	Available() []domain.SourceKind

	// Endpoint returns the configured base URL for kind.
	Endpoint(kind domain.SourceKind) string

	// Create builds one connector per kind. Connectors created together share
	// a response cache; each gets its own rate limiter and circuit breaker.
	// Background work started here stops when ctx ends.
	Create(ctx context.Context, cfg domain.ExportConfig, kinds []domain.SourceKind) ([]Connector, error)

	// Health reports breaker states and counters for the connectors built by the last Create.
	Health() domain.RunHealth
}
