package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

func newCheckpoint(runID string, updated time.Time) *domain.Checkpoint {
	cp := domain.NewCheckpoint(runID, "Sprint42", domain.ProfileBalanced, nil, updated)
	cp.SetPending([]string{"jira:A-1", "jira:A-2"})
	return cp
}

func TestCheckpointStore_SaveLoadCopies(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	cp := newCheckpoint("run-1", time.Now())
	require.NoError(t, store.Save(ctx, cp))

	cp.Resolve("jira:A-1", domain.FetchSucceeded)
	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, loaded.Pending, 2, "stored copy unaffected by caller mutation")
	assert.Equal(t, 1, store.SaveCount())

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckpointStore_ListAndPurge(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, newCheckpoint("old", now.Add(-8*24*time.Hour))))
	require.NoError(t, store.Save(ctx, newCheckpoint("locked-old", now.Add(-9*24*time.Hour))))
	require.NoError(t, store.Save(ctx, newCheckpoint("new", now)))

	_, err := store.Lock(ctx, "locked-old")
	require.NoError(t, err)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "new", list[0].RunID)
	assert.True(t, list[2].Locked)

	n, err := store.PurgeOlderThan(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCheckpointStore_Lock(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	release, err := store.Lock(ctx, "run-1")
	require.NoError(t, err)

	_, err = store.Lock(ctx, "run-1")
	assert.ErrorIs(t, err, domain.ErrCheckpointLocked)

	require.NoError(t, release())
	require.NoError(t, release())
	_, err = store.Lock(ctx, "run-1")
	require.NoError(t, err)

	require.NoError(t, store.Unlock(ctx, "run-1"))
	_, err = store.Lock(ctx, "run-1")
	assert.NoError(t, err)
}

func TestCheckpointStore_Results(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()
	item := domain.WorkItem{ID: "A-1", Kind: domain.SourceJira, Container: "A"}

	require.NoError(t, store.PutResult(ctx, "run-1", domain.FetchResult{Item: item, Status: domain.FetchFailed}))
	require.NoError(t, store.PutResult(ctx, "run-1", domain.FetchResult{Item: item, Status: domain.FetchSucceeded}))

	results, err := store.Results(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.FetchSucceeded, results[0].Status)

	require.NoError(t, store.Save(ctx, newCheckpoint("run-1", time.Now())))
	require.NoError(t, store.Delete(ctx, "run-1"))
	results, err = store.Results(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.ErrorIs(t, store.Delete(ctx, "run-1"), domain.ErrNotFound)
}
