package driven

import (
	"context"
	"io"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// Renderer writes a container report in one output format.
type Renderer interface {
	// Format returns the output format produced.
	Format() domain.OutputFormat

	// Render writes the report to w.
	Render(ctx context.Context, report domain.ContainerReport, w io.Writer) error
}
