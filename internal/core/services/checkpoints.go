package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driven"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driving"
)

// Ensure CheckpointService implements the interface.
var _ driving.CheckpointService = (*CheckpointService)(nil)

// CheckpointService manages stored runs.
type CheckpointService struct {
	store driven.CheckpointStore
	now   func() time.Time
}

// NewCheckpointService creates a new checkpoint service.
func NewCheckpointService(store driven.CheckpointStore) *CheckpointService {
	return &CheckpointService{store: store, now: time.Now}
}

// List returns every stored run, newest first.
func (s *CheckpointService) List(ctx context.Context) ([]domain.CheckpointSummary, error) {
	summaries, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	return summaries, nil
}

// Show returns the full checkpoint of a run.
// A unique run ID prefix is accepted.
func (s *CheckpointService) Show(ctx context.Context, runID string) (*domain.Checkpoint, error) {
	id, err := s.resolve(ctx, runID)
	if err != nil {
		return nil, err
	}
	return s.store.Load(ctx, id)
}

// Purge deletes unlocked runs not updated within olderThan.
func (s *CheckpointService) Purge(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan < 0 {
		return 0, fmt.Errorf("%w: negative retention", domain.ErrInvalidInput)
	}
	return s.store.PurgeOlderThan(ctx, s.now().Add(-olderThan))
}

// Delete removes a single run.
func (s *CheckpointService) Delete(ctx context.Context, runID string) error {
	id, err := s.resolve(ctx, runID)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// Unlock releases a stale lock on a run.
func (s *CheckpointService) Unlock(ctx context.Context, runID string) error {
	id, err := s.resolve(ctx, runID)
	if err != nil {
		return err
	}
	return s.store.Unlock(ctx, id)
}

// resolve expands a run ID prefix to a full ID.
func (s *CheckpointService) resolve(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("%w: run id is required", domain.ErrInvalidInput)
	}

	summaries, err := s.store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list checkpoints: %w", err)
	}

	var matches []string
	for _, sum := range summaries {
		if sum.RunID == prefix {
			return prefix, nil
		}
		if strings.HasPrefix(sum.RunID, prefix) {
			matches = append(matches, sum.RunID)
		}
	}
	switch len(matches) {
	case 0:
		return prefix, nil
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: run id prefix %q matches %d runs", domain.ErrInvalidInput, prefix, len(matches))
	}
}
