package domain

import (
	"fmt"
	"sort"
	"time"
)

// CheckpointSchemaVersion is the current on-disk checkpoint version.
const CheckpointSchemaVersion = 1

// Checkpoint is the persisted progress of one export run.
// Completed and Pending are disjoint. An item leaves Pending only by entering Completed.
type Checkpoint struct {
	// SchemaVersion guards decoding of older formats.
	SchemaVersion int `json:"schema_version"`

	// RunID is the unique run identifier (UUID).
	RunID string `json:"run_id"`

	// Label is the exported label.
	Label string `json:"label"`

	// Profile is the profile the run started with.
	Profile Profile `json:"profile"`

	// Sources are the upstreams included in the run.
	Sources []SourceKind `json:"sources"`

	// ExportDate is the YYYY_MM_DD folder the run writes to.
	ExportDate string `json:"export_date"`

	// Phase is the last recorded phase.
	Phase RunPhase `json:"phase"`

	// Completed maps item keys to their terminal status.
	Completed map[string]FetchStatus `json:"completed"`

	// Pending holds keys of enumerated items without a terminal result.
	Pending []string `json:"pending"`

	// CreatedAt is when the run started.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the checkpoint was last saved.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCheckpoint returns an empty checkpoint for a new run.
func NewCheckpoint(runID, label string, profile Profile, sources []SourceKind, now time.Time) *Checkpoint {
	return &Checkpoint{
		SchemaVersion: CheckpointSchemaVersion,
		RunID:         runID,
		Label:         label,
		Profile:       profile,
		Sources:       sources,
		ExportDate:    now.Format("2006_01_02"),
		Phase:         PhaseEnumerating,
		Completed:     make(map[string]FetchStatus),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// SetPending replaces the pending set with keys not yet completed.
func (c *Checkpoint) SetPending(keys []string) {
	pending := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, done := c.Completed[k]; done {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		pending = append(pending, k)
	}
	c.Pending = pending
}

// Resolve moves key from Pending to Completed.
func (c *Checkpoint) Resolve(key string, status FetchStatus) {
	if c.Completed == nil {
		c.Completed = make(map[string]FetchStatus)
	}
	c.Completed[key] = status
	for i, k := range c.Pending {
		if k == key {
			c.Pending = append(c.Pending[:i], c.Pending[i+1:]...)
			break
		}
	}
}

// IsCompleted returns true if key has a terminal status.
func (c *Checkpoint) IsCompleted(key string) bool {
	_, ok := c.Completed[key]
	return ok
}

// Counts returns succeeded, failed and skipped totals.
func (c *Checkpoint) Counts() (succeeded, failed, skipped int) {
	for _, s := range c.Completed {
		switch s {
		case FetchSucceeded:
			succeeded++
		case FetchFailed:
			failed++
		case FetchSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}

// Validate checks the checkpoint invariants after decoding.
func (c *Checkpoint) Validate() error {
	if c.SchemaVersion != CheckpointSchemaVersion {
		return fmt.Errorf("%w: schema version %d", ErrCheckpointCorrupt, c.SchemaVersion)
	}
	if c.RunID == "" || c.Label == "" {
		return fmt.Errorf("%w: missing run id or label", ErrCheckpointCorrupt)
	}
	for key, status := range c.Completed {
		if !status.IsValid() {
			return fmt.Errorf("%w: item %s has status %q", ErrCheckpointCorrupt, key, status)
		}
	}
	for _, key := range c.Pending {
		if _, ok := c.Completed[key]; ok {
			return fmt.Errorf("%w: item %s is both pending and completed", ErrCheckpointCorrupt, key)
		}
	}
	return nil
}

// Summary returns the listing view of the checkpoint.
func (c *Checkpoint) Summary() CheckpointSummary {
	s, f, k := c.Counts()
	return CheckpointSummary{
		RunID:     c.RunID,
		Label:     c.Label,
		Profile:   c.Profile,
		Phase:     c.Phase,
		Succeeded: s,
		Failed:    f,
		Skipped:   k,
		Pending:   len(c.Pending),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// CompletedKeys returns completed keys in sorted order.
func (c *Checkpoint) CompletedKeys() []string {
	keys := make([]string, 0, len(c.Completed))
	for k := range c.Completed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CheckpointSummary is a compact view of a stored checkpoint.
type CheckpointSummary struct {
	RunID     string    `json:"run_id"`
	Label     string    `json:"label"`
	Profile   Profile   `json:"profile"`
	Phase     RunPhase  `json:"phase"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Pending   int       `json:"pending"`
	Locked    bool      `json:"locked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Resumable returns true if the run did not finish.
func (s CheckpointSummary) Resumable() bool {
	return s.Phase != PhaseCompleted
}
