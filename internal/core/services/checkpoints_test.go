package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ctxexport/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

func seedCheckpoint(t *testing.T, store *memory.CheckpointStore, runID string, updated time.Time) {
	t.Helper()
	cp := domain.NewCheckpoint(runID, "Sprint42", domain.ProfileBalanced, nil, updated)
	require.NoError(t, store.Save(context.Background(), cp))
}

func TestCheckpointService_ShowByPrefix(t *testing.T) {
	store := memory.NewCheckpointStore()
	seedCheckpoint(t, store, "abc-123", time.Now())
	seedCheckpoint(t, store, "abd-456", time.Now())
	svc := NewCheckpointService(store)
	ctx := context.Background()

	cp, err := svc.Show(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", cp.RunID)

	_, err = svc.Show(ctx, "ab")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Show(ctx, "zzz")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Show(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCheckpointService_Purge(t *testing.T) {
	store := memory.NewCheckpointStore()
	now := time.Now()
	seedCheckpoint(t, store, "old", now.Add(-8*24*time.Hour))
	seedCheckpoint(t, store, "new", now)
	svc := NewCheckpointService(store)
	ctx := context.Background()

	_, err := svc.Purge(ctx, -time.Hour)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	n, err := svc.Purge(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].RunID)
}

func TestCheckpointService_DeleteAndUnlock(t *testing.T) {
	store := memory.NewCheckpointStore()
	seedCheckpoint(t, store, "run-1", time.Now())
	svc := NewCheckpointService(store)
	ctx := context.Background()

	_, err := store.Lock(ctx, "run-1")
	require.NoError(t, err)
	require.NoError(t, svc.Unlock(ctx, "run"))
	_, err = store.Lock(ctx, "run-1")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "run-1"))
	assert.ErrorIs(t, svc.Delete(ctx, "run-1"), domain.ErrNotFound)
}
