package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/ctxexport/internal/adapters/driven/storage/codec"
	"github.com/custodia-labs/ctxexport/internal/adapters/driven/storage/holder"
	"github.com/custodia-labs/ctxexport/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driven"
	"github.com/custodia-labs/ctxexport/internal/logger"
	"github.com/custodia-labs/ctxexport/internal/telemetry"
)

// DBName is the database file created inside the checkpoint directory.
const DBName = "checkpoints.db"

// Ensure Store implements the interface.
var _ driven.RunStore = (*Store)(nil)

// Store is a SQLite-based run store.
type Store struct {
	db     *sql.DB
	path   string
	owner  string
	tracer trace.Tracer
	now    func() time.Time
	alive  func(pid int) bool
}

// NewStore creates a new SQLite store in the specified directory.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: checkpoint directory is required", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory: %w", err)
	}

	dbPath := filepath.Join(dir, DBName)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:     db,
		path:   dbPath,
		owner:  uuid.NewString(),
		tracer: telemetry.Tracer("storage/sqlite"),
		now:    time.Now,
		alive:  holder.ProcessAlive,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations and records each applied version.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Checkpoints ====================

// Save stores or replaces a checkpoint.
func (s *Store) Save(ctx context.Context, cp *domain.Checkpoint) error {
	data, err := codec.EncodeCheckpoint(cp)
	if err != nil {
		return err
	}

	return s.trace(ctx, "checkpoint.save", cp.RunID, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO runs (run_id, label, profile, phase, data, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id) DO UPDATE SET
				phase = excluded.phase,
				data = excluded.data,
				updated_at = excluded.updated_at
		`, cp.RunID, cp.Label, string(cp.Profile), string(cp.Phase), string(data),
			cp.CreatedAt.UnixNano(), cp.UpdatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("saving checkpoint: %w", err)
		}
		return tx.Commit()
	})
}

// Load retrieves a checkpoint.
func (s *Store) Load(ctx context.Context, runID string) (*domain.Checkpoint, error) {
	var cp *domain.Checkpoint
	err := s.trace(ctx, "checkpoint.load", runID, func(ctx context.Context) error {
		var data string
		err := s.db.QueryRowContext(ctx, "SELECT data FROM runs WHERE run_id = ?", runID).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("querying checkpoint: %w", err)
		}
		cp, err = codec.DecodeCheckpoint([]byte(data))
		return err
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// List returns checkpoint summaries newest first.
// Rows that fail to decode are listed with their stored columns only.
func (s *Store) List(ctx context.Context) ([]domain.CheckpointSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.label, r.profile, r.phase, r.data, r.created_at, r.updated_at,
			l.run_id IS NOT NULL
		FROM runs r
		LEFT JOIN run_locks l ON l.run_id = r.run_id
		ORDER BY r.updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying checkpoints: %w", err)
	}
	defer rows.Close()

	var summaries []domain.CheckpointSummary
	for rows.Next() {
		var (
			runID, label, profile, phase, data string
			created, updated                   int64
			locked                             bool
		)
		if err := rows.Scan(&runID, &label, &profile, &phase, &data, &created, &updated, &locked); err != nil {
			return nil, fmt.Errorf("scanning checkpoint: %w", err)
		}

		sum := domain.CheckpointSummary{
			RunID:     runID,
			Label:     label,
			Profile:   domain.Profile(profile),
			Phase:     domain.RunPhase(phase),
			CreatedAt: time.Unix(0, created),
			UpdatedAt: time.Unix(0, updated),
		}
		if cp, err := codec.DecodeCheckpoint([]byte(data)); err == nil {
			sum = cp.Summary()
		}
		sum.Locked = locked
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Delete removes a checkpoint, its results and any lock.
func (s *Store) Delete(ctx context.Context, runID string) error {
	return s.trace(ctx, "checkpoint.delete", runID, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE run_id = ?", runID)
		if err != nil {
			return fmt.Errorf("deleting checkpoint: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		if err := deleteRunRows(ctx, tx, runID); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// PurgeOlderThan removes unlocked runs last updated before cutoff.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var removed int
	err := s.trace(ctx, "checkpoint.purge", "", func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		rows, err := tx.QueryContext(ctx, `
			SELECT run_id FROM runs
			WHERE updated_at < ? AND run_id NOT IN (SELECT run_id FROM run_locks)
		`, cutoff.UnixNano())
		if err != nil {
			return fmt.Errorf("querying expired checkpoints: %w", err)
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scanning run id: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()

		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE run_id = ?", id); err != nil {
				return fmt.Errorf("purging %s: %w", id, err)
			}
			if err := deleteRunRows(ctx, tx, id); err != nil {
				return err
			}
		}
		removed = len(ids)
		return tx.Commit()
	})
	return removed, err
}

func deleteRunRows(ctx context.Context, tx *sql.Tx, runID string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM results WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("deleting results: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM run_locks WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("deleting lock: %w", err)
	}
	return nil
}

// ==================== Locks ====================

// Lock claims a run for this store's owner. A lock whose holder ran on
// this host and has exited is taken over once.
func (s *Store) Lock(ctx context.Context, runID string) (func() error, error) {
	me := holder.Current(s.now())
	for attempt := 0; ; attempt++ {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO run_locks (run_id, owner, pid, host, acquired_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(run_id) DO NOTHING
		`, runID, s.owner, me.PID, me.Host, me.Since.UnixNano())
		if err != nil {
			return nil, fmt.Errorf("acquiring lock: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			break
		}

		owner, h, err := s.lockHolder(ctx, runID)
		if errors.Is(err, sql.ErrNoRows) {
			if attempt == 0 {
				continue
			}
			return nil, fmt.Errorf("run %s: %w", runID, domain.ErrCheckpointLocked)
		}
		if err != nil {
			return nil, fmt.Errorf("reading lock: %w", err)
		}
		if attempt > 0 || !h.Gone(s.alive) {
			return nil, fmt.Errorf("run %s held by %s: %w", runID, h, domain.ErrCheckpointLocked)
		}
		// Owner scoping keeps a concurrent taker from deleting a fresh lock.
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM run_locks WHERE run_id = ? AND owner = ?", runID, owner); err != nil {
			return nil, fmt.Errorf("clearing stale lock: %w", err)
		}
		logger.Warn("taking over lock on run %s left by %s", runID, h)
	}

	release := func() error {
		_, err := s.db.Exec("DELETE FROM run_locks WHERE run_id = ? AND owner = ?", runID, s.owner)
		if err != nil {
			return fmt.Errorf("releasing lock: %w", err)
		}
		return nil
	}
	return release, nil
}

func (s *Store) lockHolder(ctx context.Context, runID string) (string, holder.Holder, error) {
	var (
		owner    string
		h        holder.Holder
		acquired int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT owner, pid, host, acquired_at FROM run_locks WHERE run_id = ?", runID,
	).Scan(&owner, &h.PID, &h.Host, &acquired)
	if err != nil {
		return "", holder.Holder{}, err
	}
	h.Since = time.Unix(0, acquired).UTC()
	return owner, h, nil
}

// Unlock force-releases a lock regardless of owner.
func (s *Store) Unlock(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM run_locks WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}

// ==================== Results ====================

// PutResult stores or replaces the result for an item.
func (s *Store) PutResult(ctx context.Context, runID string, r domain.FetchResult) error {
	data, err := codec.EncodeResult(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (run_id, item_key, status, data, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, item_key) DO UPDATE SET
			status = excluded.status,
			data = excluded.data,
			recorded_at = excluded.recorded_at
	`, runID, r.Item.Key(), string(r.Status), string(data), s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("saving result: %w", err)
	}
	return nil
}

// Results returns every stored result for a run, ordered by item key.
func (s *Store) Results(ctx context.Context, runID string) ([]domain.FetchResult, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM results WHERE run_id = ? ORDER BY item_key", runID)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	var results []domain.FetchResult
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		r, err := codec.DecodeResult([]byte(data))
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) trace(ctx context.Context, op, runID string, fn func(ctx context.Context) error) error {
	attrs := []attribute.KeyValue{attribute.String("db.system", "sqlite")}
	if runID != "" {
		attrs = append(attrs, attribute.String("ctxexport.run_id", runID))
	}
	return telemetry.ExecuteAndTrace(ctx, s.tracer, "sqlite."+op, attrs, fn)
}
