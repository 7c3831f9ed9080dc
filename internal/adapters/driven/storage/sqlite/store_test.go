package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	return store
}

func newCheckpoint(runID string, updated time.Time) *domain.Checkpoint {
	cp := domain.NewCheckpoint(runID, "Sprint42", domain.ProfileBalanced,
		[]domain.SourceKind{domain.SourceConfluence, domain.SourceJira}, updated)
	cp.SetPending([]string{"confluence:1", "jira:ENG-1"})
	return cp
}

func TestNewStore_RequiresDir(t *testing.T) {
	_, err := NewStore("")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewStore_RecordsMigrations(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DBName), store.Path())
	require.NoError(t, store.Close())

	// Reopening must not re-run any migration.
	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	var count int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 2, count)

	_, err = os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestStore_SaveLoad(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	cp := newCheckpoint("run-1", time.Now())
	require.NoError(t, store.Save(ctx, cp))

	cp.Resolve("confluence:1", domain.FetchSucceeded)
	cp.Phase = domain.PhaseFetching
	require.NoError(t, store.Save(ctx, cp))

	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseFetching, loaded.Phase)
	assert.Equal(t, []string{"jira:ENG-1"}, loaded.Pending)
	assert.Equal(t, domain.FetchSucceeded, loaded.Completed["confluence:1"])

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_LoadCorrupt(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.db.Exec(`INSERT INTO runs (run_id, label, profile, phase, data, created_at, updated_at)
		VALUES ('bad', 'L', 'fast', 'fetching', '{not json', 0, 0)`)
	require.NoError(t, err)

	_, err = store.Load(ctx, "bad")
	assert.ErrorIs(t, err, domain.ErrCheckpointCorrupt)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "bad", list[0].RunID)
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, newCheckpoint("older", now.Add(-time.Hour))))
	require.NoError(t, store.Save(ctx, newCheckpoint("newer", now)))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].RunID)
	assert.Equal(t, 2, list[0].Pending)
}

func TestStore_PurgeKeepsLocked(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, newCheckpoint("expired", now.Add(-10*24*time.Hour))))
	require.NoError(t, store.Save(ctx, newCheckpoint("expired-locked", now.Add(-10*24*time.Hour))))
	require.NoError(t, store.Save(ctx, newCheckpoint("fresh", now)))
	require.NoError(t, store.PutResult(ctx, "expired", domain.FetchResult{
		Item:   domain.WorkItem{ID: "1", Kind: domain.SourceConfluence},
		Status: domain.FetchSucceeded,
	}))

	_, err := store.Lock(ctx, "expired-locked")
	require.NoError(t, err)

	n, err := store.PurgeOlderThan(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Load(ctx, "expired")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	results, err := store.Results(ctx, "expired")
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = store.Load(ctx, "expired-locked")
	assert.NoError(t, err)
}

func TestStore_Lock(t *testing.T) {
	dir := t.TempDir()
	a, err := NewStore(dir)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewStore(dir)
	require.NoError(t, err)
	defer b.Close()
	ctx := context.Background()

	release, err := a.Lock(ctx, "run-1")
	require.NoError(t, err)

	_, err = b.Lock(ctx, "run-1")
	assert.ErrorIs(t, err, domain.ErrCheckpointLocked)

	require.NoError(t, release())
	releaseB, err := b.Lock(ctx, "run-1")
	require.NoError(t, err)

	// Releasing a lock held by another owner is a no-op.
	require.NoError(t, release())
	_, err = a.Lock(ctx, "run-1")
	assert.ErrorIs(t, err, domain.ErrCheckpointLocked)

	require.NoError(t, a.Unlock(ctx, "run-1"))
	_, err = a.Lock(ctx, "run-1")
	assert.NoError(t, err)
	assert.NoError(t, releaseB())
}

// plantLock inserts a lock row as if another process had taken it.
func plantLock(t *testing.T, store *Store, runID string, pid int, host string) {
	t.Helper()
	_, err := store.db.Exec(
		"INSERT INTO run_locks (run_id, owner, pid, host, acquired_at) VALUES (?, ?, ?, ?, ?)",
		runID, "crashed-owner", pid, host, time.Now().UnixNano())
	require.NoError(t, err)
}

func TestStore_LockTakesOverExitedHolder(t *testing.T) {
	store := setupTestStore(t)
	store.alive = func(int) bool { return false }
	ctx := context.Background()
	host, err := os.Hostname()
	require.NoError(t, err)

	plantLock(t, store, "run-1", 4242, host)
	release, err := store.Lock(ctx, "run-1")
	require.NoError(t, err)

	var owner string
	var pid int
	require.NoError(t, store.db.QueryRow(
		"SELECT owner, pid FROM run_locks WHERE run_id = ?", "run-1").Scan(&owner, &pid))
	assert.Equal(t, store.owner, owner)
	assert.Equal(t, os.Getpid(), pid)
	require.NoError(t, release())
}

func TestStore_LockKeepsLiveOrForeignHolder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	host, err := os.Hostname()
	require.NoError(t, err)

	store.alive = func(int) bool { return true }
	plantLock(t, store, "live", 4242, host)
	_, err = store.Lock(ctx, "live")
	assert.ErrorIs(t, err, domain.ErrCheckpointLocked)
	assert.Contains(t, err.Error(), "pid 4242 on "+host)

	store.alive = func(int) bool { return false }
	plantLock(t, store, "foreign", 4242, host+"-other")
	_, err = store.Lock(ctx, "foreign")
	assert.ErrorIs(t, err, domain.ErrCheckpointLocked)

	plantLock(t, store, "legacy", 4242, "")
	_, err = store.Lock(ctx, "legacy")
	assert.ErrorIs(t, err, domain.ErrCheckpointLocked, "rows without a host are never taken over")
}

func TestStore_Results(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	item := domain.WorkItem{ID: "ENG-1", Kind: domain.SourceJira, Container: "ENG"}

	require.NoError(t, store.PutResult(ctx, "run-1", domain.FetchResult{
		Item: item, Status: domain.FetchFailed, Reason: domain.ReasonTransient, Attempts: 4,
	}))
	require.NoError(t, store.PutResult(ctx, "run-1", domain.FetchResult{
		Item: item, Status: domain.FetchSucceeded, Content: &domain.Content{Title: "ENG-1: Fix"},
	}))
	require.NoError(t, store.PutResult(ctx, "run-1", domain.FetchResult{
		Item: domain.WorkItem{ID: "7", Kind: domain.SourceConfluence}, Status: domain.FetchSkipped,
	}))

	results, err := store.Results(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "confluence:7", results[0].Item.Key())
	assert.Equal(t, domain.FetchSucceeded, results[1].Status)
	assert.Equal(t, "ENG-1: Fix", results[1].Content.Title)
}

func TestStore_Delete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newCheckpoint("run-1", time.Now())))
	_, err := store.Lock(ctx, "run-1")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "run-1"))
	assert.ErrorIs(t, store.Delete(ctx, "run-1"), domain.ErrNotFound)

	var n int
	err = store.db.QueryRow("SELECT COUNT(*) FROM run_locks").Scan(&n)
	require.True(t, err == nil || err == sql.ErrNoRows)
	assert.Equal(t, 0, n)
}
