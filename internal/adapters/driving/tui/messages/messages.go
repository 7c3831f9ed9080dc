// Package messages defines Bubbletea message types for the progress view.
package messages

import (
	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// Progress carries one orchestrator event into the model.
type Progress struct {
	Event domain.ProgressEvent
}

// Finished is sent once the export returns.
type Finished struct {
	Summary *domain.ExportSummary
	Err     error
}
