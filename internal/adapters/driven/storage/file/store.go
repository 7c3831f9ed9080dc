package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/ctxexport/internal/adapters/driven/storage/codec"
	"github.com/custodia-labs/ctxexport/internal/adapters/driven/storage/holder"
	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driven"
	"github.com/custodia-labs/ctxexport/internal/logger"
)

const (
	checkpointFile = "checkpoint.json"
	resultsFile    = "results.jsonl"
	lockFile       = ".lock"
)

// Ensure Store implements the interface.
var _ driven.RunStore = (*Store)(nil)

// Store keeps checkpoints as JSON files under a directory.
type Store struct {
	dir   string
	now   func() time.Time
	alive func(pid int) bool

	// mu serialises writes to results files within this process.
	mu sync.Mutex
}

// NewStore creates a file store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: checkpoint directory is required", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory: %w", err)
	}
	return &Store{dir: dir, now: time.Now, alive: holder.ProcessAlive}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) runDir(runID string) (string, error) {
	if runID == "" || runID != filepath.Base(runID) || strings.HasPrefix(runID, ".") {
		return "", fmt.Errorf("%w: run id %q", domain.ErrInvalidInput, runID)
	}
	return filepath.Join(s.dir, runID), nil
}

// Save atomically replaces the checkpoint file.
func (s *Store) Save(_ context.Context, cp *domain.Checkpoint) error {
	dir, err := s.runDir(cp.RunID)
	if err != nil {
		return err
	}
	data, err := codec.EncodeCheckpoint(cp)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}
	return writeAtomic(filepath.Join(dir, checkpointFile), data)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint.
func (s *Store) Load(_ context.Context, runID string) (*domain.Checkpoint, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, checkpointFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}
	return codec.DecodeCheckpoint(data)
}

// List returns summaries newest first. Corrupt checkpoints are skipped with a warning.
func (s *Store) List(ctx context.Context) ([]domain.CheckpointSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint directory: %w", err)
	}

	var summaries []domain.CheckpointSummary
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		cp, err := s.Load(ctx, e.Name())
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				logger.Warn("skipping checkpoint %s: %v", e.Name(), err)
			}
			continue
		}
		sum := cp.Summary()
		sum.Locked = s.locked(e.Name())
		summaries = append(summaries, sum)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// Delete removes the run directory.
func (s *Store) Delete(_ context.Context, runID string) error {
	dir, err := s.runDir(runID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return domain.ErrNotFound
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting run %s: %w", runID, err)
	}
	return nil
}

// PurgeOlderThan removes unlocked runs whose checkpoint was updated before cutoff.
// Unreadable checkpoints are aged by file modification time.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("reading checkpoint directory: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || s.locked(e.Name()) {
			continue
		}
		updated, ok := s.updatedAt(ctx, e.Name())
		if !ok || !updated.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			return removed, fmt.Errorf("purging %s: %w", e.Name(), err)
		}
		logger.Debug("purged checkpoint %s", e.Name())
		removed++
	}
	return removed, nil
}

func (s *Store) updatedAt(ctx context.Context, runID string) (time.Time, bool) {
	cp, err := s.Load(ctx, runID)
	if err == nil {
		return cp.UpdatedAt, true
	}
	info, statErr := os.Stat(filepath.Join(s.dir, runID, checkpointFile))
	if statErr != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// locked reports whether a live holder owns the run. A lock left by a
// process that has exited does not protect the run from purging.
func (s *Store) locked(runID string) bool {
	h, err := readHolder(filepath.Join(s.dir, runID, lockFile))
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	return err != nil || !h.Gone(s.alive)
}

func readHolder(path string) (holder.Holder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return holder.Holder{}, err
	}
	return holder.Parse(string(data))
}

// Lock creates the run's lock file exclusively. A lock file whose holder
// ran on this host and has exited is taken over once.
func (s *Store) Lock(_ context.Context, runID string) (func() error, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}

	path := filepath.Join(dir, lockFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if errors.Is(err, fs.ErrExist) {
		f, err = s.takeOver(runID, path)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("creating lock: %w", err)
	}
	_, err = f.WriteString(holder.Current(s.now()).Line())
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("writing lock: %w", err)
	}

	var once sync.Once
	release := func() error {
		var err error
		once.Do(func() {
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				err = fmt.Errorf("releasing lock: %w", rmErr)
			}
		})
		return err
	}
	return release, nil
}

func (s *Store) takeOver(runID, path string) (*os.File, error) {
	h, err := readHolder(path)
	if err != nil || !h.Gone(s.alive) {
		return nil, lockedError(runID, h, err)
	}
	logger.Warn("taking over lock on run %s left by %s", runID, h)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("clearing stale lock: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if errors.Is(err, fs.ErrExist) {
		h, readErr := readHolder(path)
		return nil, lockedError(runID, h, readErr)
	}
	if err != nil {
		return nil, fmt.Errorf("creating lock: %w", err)
	}
	return f, nil
}

func lockedError(runID string, h holder.Holder, readErr error) error {
	if readErr != nil {
		return fmt.Errorf("run %s: %w", runID, domain.ErrCheckpointLocked)
	}
	return fmt.Errorf("run %s held by %s: %w", runID, h, domain.ErrCheckpointLocked)
}

// Unlock removes the lock file.
func (s *Store) Unlock(_ context.Context, runID string) error {
	dir, err := s.runDir(runID)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(dir, lockFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}

// PutResult appends a result line. Later lines win on read.
func (s *Store) PutResult(_ context.Context, runID string, r domain.FetchResult) error {
	dir, err := s.runDir(runID)
	if err != nil {
		return err
	}
	line, err := codec.EncodeResult(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, resultsFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("opening results: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("writing result: %w", err)
	}
	return f.Close()
}

// Results reads the spool, keeping the last line per item key.
// A torn final line from a crash is ignored.
func (s *Store) Results(_ context.Context, runID string) ([]domain.FetchResult, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(dir, resultsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening results: %w", err)
	}
	defer f.Close()

	latest := make(map[string]domain.FetchResult)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		r, err := codec.DecodeResult(line)
		if err != nil {
			logger.Warn("skipping unreadable result in run %s: %v", runID, err)
			continue
		}
		latest[r.Item.Key()] = r
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}

	keys := make([]string, 0, len(latest))
	for k := range latest {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]domain.FetchResult, 0, len(keys))
	for _, k := range keys {
		results = append(results, latest[k])
	}
	return results, nil
}
