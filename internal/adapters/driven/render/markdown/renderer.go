// Package markdown writes container reports as markdown files.
package markdown

import (
	"context"
	"io"

	"github.com/custodia-labs/ctxexport/internal/adapters/driven/render"
	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driven"
)

// Ensure Renderer implements the interface.
var _ driven.Renderer = (*Renderer)(nil)

// Renderer writes the composed markdown unchanged.
type Renderer struct{}

// New creates a markdown renderer.
func New() *Renderer {
	return &Renderer{}
}

// Format returns domain.OutputMarkdown.
func (r *Renderer) Format() domain.OutputFormat {
	return domain.OutputMarkdown
}

// Render writes the report to w.
func (r *Renderer) Render(ctx context.Context, report domain.ContainerReport, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := io.WriteString(w, render.Compose(report))
	return err
}
