package domain

import "time"

// RunPhase is the lifecycle phase of an export run.
type RunPhase string

// Run phases.
const (
	PhaseEnumerating RunPhase = "enumerating"
	PhaseResuming    RunPhase = "resuming"
	PhaseFetching    RunPhase = "fetching"
	PhaseRendering   RunPhase = "rendering"
	PhaseCompleted   RunPhase = "completed"
	PhaseInterrupted RunPhase = "interrupted"
)

// IsTerminal returns true for phases that end a run.
func (p RunPhase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseInterrupted
}

// String returns the string representation.
func (p RunPhase) String() string {
	return string(p)
}

// ExportRequest describes one export invocation.
type ExportRequest struct {
	// Label is the label to export. Required unless ResumeRunID is set.
	Label string

	// ResumeRunID continues a previous run.
	ResumeRunID string

	// Sources limits the upstreams. Empty means every configured upstream.
	Sources []SourceKind

	// DryRun enumerates only and writes nothing.
	DryRun bool
}

// ContainerOutput records one rendered file.
type ContainerOutput struct {
	Container string `json:"container"`
	Path      string `json:"path"`
	Items     int    `json:"items"`
	Failed    int    `json:"failed"`
}

// ExportSummary is returned when a run ends.
type ExportSummary struct {
	RunID      string            `json:"run_id"`
	Label      string            `json:"label"`
	Phase      RunPhase          `json:"phase"`
	Containers int               `json:"containers"`
	Total      int               `json:"total"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped"`
	Pending    int               `json:"pending"`
	CacheHits  int64             `json:"cache_hits"`
	HitRatio   float64           `json:"cache_hit_ratio"`
	Upstreams  []UpstreamHealth  `json:"upstreams,omitempty"`
	Outputs    []ContainerOutput `json:"outputs,omitempty"`
	Failures   []FetchResult     `json:"failures,omitempty"`
	OutputDir  string            `json:"output_dir,omitempty"`
	Duration   time.Duration     `json:"duration"`
	DryRun     bool              `json:"dry_run,omitempty"`
	Planned    []Container       `json:"planned,omitempty"`

	// Resumable is set on an interrupted run whose checkpoint outlives
	// the process.
	Resumable bool `json:"resumable,omitempty"`
}

// Interrupted returns true if the run stopped before every item resolved.
func (s ExportSummary) Interrupted() bool {
	return s.Phase == PhaseInterrupted
}

// UpstreamHealth is the resilience state of one upstream at the end of a run.
type UpstreamHealth struct {
	Kind       SourceKind   `json:"kind"`
	Circuit    CircuitState `json:"circuit"`
	Calls      int64        `json:"calls"`
	Attempts   int64        `json:"attempts"`
	Retries    int64        `json:"retries"`
	Rejections int64        `json:"circuit_rejections"`
}

// RunHealth aggregates upstream and cache statistics for a run.
type RunHealth struct {
	Upstreams   []UpstreamHealth
	CacheHits   int64
	CacheMisses int64
}

// HitRatio returns cache hits over lookups.
func (h RunHealth) HitRatio() float64 {
	total := h.CacheHits + h.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(h.CacheHits) / float64(total)
}

// ProgressEvent is emitted by the orchestrator as a run advances.
type ProgressEvent struct {
	RunID     string
	Phase     RunPhase
	Total     int
	Done      int
	Failed    int
	Item      *WorkItem
	Status    FetchStatus
	Container string
	Message   string
}

// ContainerReport is everything a renderer needs for one output file.
type ContainerReport struct {
	// Label is the exported label.
	Label string

	// Container is the space or project being rendered.
	Container Container

	// Results are the terminal results for the container's items in enumeration order.
	Results []FetchResult

	// GeneratedAt is the render time.
	GeneratedAt time.Time
}

// Failures returns the results that did not succeed.
func (r ContainerReport) Failures() []FetchResult {
	var out []FetchResult
	for _, res := range r.Results {
		if !res.Succeeded() {
			out = append(out, res)
		}
	}
	return out
}
