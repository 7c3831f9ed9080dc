package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// CheckpointStore persists run progress.
// Save must be atomic: a crash leaves either the previous or the new checkpoint.
type CheckpointStore interface {
	// Save stores or replaces the checkpoint for its run.
	Save(ctx context.Context, cp *domain.Checkpoint) error

	// Load retrieves a checkpoint.
	// Returns domain.ErrNotFound or domain.ErrCheckpointCorrupt.
	Load(ctx context.Context, runID string) (*domain.Checkpoint, error)

	// List returns summaries of every stored checkpoint, newest first.
	List(ctx context.Context) ([]domain.CheckpointSummary, error)

	// Delete removes a checkpoint and its results.
	Delete(ctx context.Context, runID string) error

	// PurgeOlderThan deletes checkpoints last updated before cutoff.
	// Locked runs are kept. Returns the number removed.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Lock claims a run for this process. Persistent stores take over a
	// lock whose holder ran on this host and has exited.
	// Returns domain.ErrCheckpointLocked if another process holds it.
	Lock(ctx context.Context, runID string) (release func() error, err error)

	// Unlock force-releases a stale lock left by a crashed process.
	Unlock(ctx context.Context, runID string) error
}

// ResultStore spools terminal fetch results so a resumed run can render
// items completed by an earlier process.
type ResultStore interface {
	// PutResult stores or replaces the result for an item.
	PutResult(ctx context.Context, runID string, result domain.FetchResult) error

	// Results returns every stored result for a run.
	Results(ctx context.Context, runID string) ([]domain.FetchResult, error)
}

// RunStore is the combined persistence used by the export orchestrator.
type RunStore interface {
	CheckpointStore
	ResultStore
}
