package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/ctxexport/internal/adapters/driven/storage/codec"
	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driven"
)

// Ensure CheckpointStore implements the interface.
var _ driven.RunStore = (*CheckpointStore)(nil)

// CheckpointStore is an in-memory implementation of driven.RunStore.
// Used for dry runs, when checkpointing is disabled, and in tests.
type CheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*domain.Checkpoint
	results     map[string]map[string]domain.FetchResult
	locks       map[string]bool
	saves       int
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		checkpoints: make(map[string]*domain.Checkpoint),
		results:     make(map[string]map[string]domain.FetchResult),
		locks:       make(map[string]bool),
	}
}

// Save stores a copy of the checkpoint.
func (s *CheckpointStore) Save(_ context.Context, cp *domain.Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.RunID] = codec.Clone(cp)
	s.saves++
	return nil
}

// Load returns a copy of a stored checkpoint.
func (s *CheckpointStore) Load(_ context.Context, runID string) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return codec.Clone(cp), nil
}

// List returns summaries newest first.
func (s *CheckpointStore) List(_ context.Context) ([]domain.CheckpointSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CheckpointSummary, 0, len(s.checkpoints))
	for id, cp := range s.checkpoints {
		sum := cp.Summary()
		sum.Locked = s.locks[id]
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Delete removes a checkpoint and its results.
func (s *CheckpointStore) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checkpoints[runID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.checkpoints, runID)
	delete(s.results, runID)
	return nil
}

// PurgeOlderThan removes unlocked checkpoints last updated before cutoff.
func (s *CheckpointStore) PurgeOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, cp := range s.checkpoints {
		if s.locks[id] || !cp.UpdatedAt.Before(cutoff) {
			continue
		}
		delete(s.checkpoints, id)
		delete(s.results, id)
		removed++
	}
	return removed, nil
}

// Lock claims a run.
func (s *CheckpointStore) Lock(_ context.Context, runID string) (func() error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[runID] {
		return nil, domain.ErrCheckpointLocked
	}
	s.locks[runID] = true

	var once sync.Once
	return func() error {
		once.Do(func() {
			s.mu.Lock()
			delete(s.locks, runID)
			s.mu.Unlock()
		})
		return nil
	}, nil
}

// Unlock force-releases a lock.
func (s *CheckpointStore) Unlock(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, runID)
	return nil
}

// PutResult stores or replaces a result.
func (s *CheckpointStore) PutResult(_ context.Context, runID string, r domain.FetchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.results[runID]
	if !ok {
		m = make(map[string]domain.FetchResult)
		s.results[runID] = m
	}
	m[r.Item.Key()] = r
	return nil
}

// Results returns every stored result for a run, ordered by item key.
func (s *CheckpointStore) Results(_ context.Context, runID string) ([]domain.FetchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.results[runID]
	out := make([]domain.FetchResult, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item.Key() < out[j].Item.Key() })
	return out, nil
}

// SaveCount returns how many times Save succeeded. Used by tests.
func (s *CheckpointStore) SaveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
