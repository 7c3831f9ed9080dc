package driven

import (
	"context"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// Connector enumerates and fetches labelled items from one upstream.
// Every request a connector makes goes through the resilience client
// it was built with.
type Connector interface {
	// Kind returns the upstream this connector talks to.
	Kind() domain.SourceKind

	// Validate performs a lightweight authenticated call.
	// Returns domain.ErrAuthInvalid when credentials are rejected.
	Validate(ctx context.Context) error

	// Enumerate lists every container holding items with the label,
	// each with its WorkItems in upstream order.
	Enumerate(ctx context.Context, label string) ([]domain.Container, error)

	// Fetch retrieves the content of one item.
	// Returns domain.ErrItemSkipped for items that exist but are not exported.
	Fetch(ctx context.Context, item domain.WorkItem) (*domain.Content, error)

	// Close releases resources.
	Close() error
}
