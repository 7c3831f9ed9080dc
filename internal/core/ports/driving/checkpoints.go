package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// CheckpointService manages stored runs.
type CheckpointService interface {
	// List returns every stored run, newest first.
	List(ctx context.Context) ([]domain.CheckpointSummary, error)

	// Show returns the full checkpoint of a run.
	Show(ctx context.Context, runID string) (*domain.Checkpoint, error)

	// Purge deletes runs not updated within olderThan. Returns the number removed.
	Purge(ctx context.Context, olderThan time.Duration) (int, error)

	// Delete removes a single run.
	Delete(ctx context.Context, runID string) error

	// Unlock releases a stale lock on a run.
	Unlock(ctx context.Context, runID string) error
}
