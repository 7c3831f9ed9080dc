package driving

import (
	"context"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// ProgressFunc receives progress events. It is called from a single goroutine.
type ProgressFunc func(domain.ProgressEvent)

// Exporter runs label exports.
type Exporter interface {
	// Export runs or resumes an export.
	// An interrupted run returns a summary with PhaseInterrupted and a nil error.
	Export(ctx context.Context, req domain.ExportRequest, progress ProgressFunc) (*domain.ExportSummary, error)

	// Validate checks connectivity and credentials for every configured upstream.
	Validate(ctx context.Context) []ConnectorStatus
}

// ConnectorStatus reports the result of validating one upstream.
type ConnectorStatus struct {
	// Kind identifies the upstream.
	Kind domain.SourceKind

	// URL is the configured base URL.
	URL string

	// Err is nil when the upstream is reachable and accepts the credentials.
	Err error
}

// OK returns true if validation succeeded.
func (s ConnectorStatus) OK() bool {
	return s.Err == nil
}
