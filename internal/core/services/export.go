package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driven"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driving"
	"github.com/custodia-labs/ctxexport/internal/logger"
)

// DefaultDrainTimeout bounds how long in-flight fetches may run after an interrupt.
const DefaultDrainTimeout = 30 * time.Second

// Ensure ExportService implements the interface.
var _ driving.Exporter = (*ExportService)(nil)

// ExportService runs label exports: enumerate, fetch with checkpoints, render.
type ExportService struct {
	cfg      domain.ExportConfig
	factory  driven.ConnectorFactory
	store    driven.RunStore
	renderer driven.Renderer

	now          func() time.Time
	newRunID     func() string
	drainTimeout time.Duration
}

// ExportOption configures an ExportService.
type ExportOption func(*ExportService)

// WithClock sets the time source.
func WithClock(now func() time.Time) ExportOption {
	return func(s *ExportService) { s.now = now }
}

// WithRunIDs sets the run ID generator.
func WithRunIDs(gen func() string) ExportOption {
	return func(s *ExportService) { s.newRunID = gen }
}

// WithDrainTimeout bounds in-flight fetches after an interrupt.
func WithDrainTimeout(d time.Duration) ExportOption {
	return func(s *ExportService) { s.drainTimeout = d }
}

// NewExportService creates an export service.
// The store receives checkpoints and results; pass a memory store to disable persistence.
func NewExportService(
	cfg domain.ExportConfig,
	factory driven.ConnectorFactory,
	store driven.RunStore,
	renderer driven.Renderer,
	opts ...ExportOption,
) *ExportService {
	s := &ExportService{
		cfg:          cfg,
		factory:      factory,
		store:        store,
		renderer:     renderer,
		now:          time.Now,
		newRunID:     uuid.NewString,
		drainTimeout: DefaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// exportRun is the mutable state of one Export call.
type exportRun struct {
	req        domain.ExportRequest
	cp         *domain.Checkpoint
	ledger     *ledger
	resumed    bool
	kinds      []domain.SourceKind
	conns      map[domain.SourceKind]driven.Connector
	containers []domain.Container
	progress   driving.ProgressFunc
	release    func() error
	start      time.Time
}

func (r *exportRun) emit(ev domain.ProgressEvent) {
	ev.RunID = r.cp.RunID
	if ev.Phase == "" {
		ev.Phase = r.cp.Phase
	}
	r.progress(ev)
}

// Export runs or resumes an export.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (s *ExportService) Export(
	ctx context.Context,
	req domain.ExportRequest,
	progress driving.ProgressFunc,
) (*domain.ExportSummary, error) {
	if progress == nil {
		progress = func(domain.ProgressEvent) {}
	}
	req.Label = strings.TrimSpace(req.Label)
	if req.Label == "" && req.ResumeRunID == "" {
		return nil, fmt.Errorf("%w: label is required", domain.ErrInvalidInput)
	}

	// Checkpoint writes must survive an interrupt.
	storeCtx := context.WithoutCancel(ctx)

	// 1. Expire old runs
	if !req.DryRun {
		s.purgeExpired(storeCtx)
	}

	// 2. Start or load the run
	run, err := s.begin(storeCtx, req)
	if err != nil {
		return nil, err
	}
	run.progress = progress
	defer func() {
		if run.release == nil {
			return
		}
		if err := run.release(); err != nil {
			logger.Warn("releasing lock for run %s: %v", run.cp.RunID, err)
		}
	}()
	log := logger.With("run_id", run.cp.RunID, "label", run.cp.Label)
	log.Info("export started", "sources", run.kinds, "resumed", run.resumed, "dry_run", req.DryRun)

	// 3. Build connectors
	connectors, err := s.factory.Create(ctx, s.cfg, run.kinds)
	if err != nil {
		return nil, fmt.Errorf("create connectors: %w", err)
	}
	defer func() {
		for _, c := range connectors {
			if err := c.Close(); err != nil {
				logger.Debug("closing %s connector: %v", c.Kind(), err)
			}
		}
	}()
	run.conns = make(map[domain.SourceKind]driven.Connector, len(connectors))
	for _, c := range connectors {
		run.conns[c.Kind()] = c
	}

	// 4. Enumerate
	if err := s.enumerate(ctx, run, connectors); err != nil {
		if isCancelled(ctx, err) {
			return s.interrupt(storeCtx, run)
		}
		return nil, err
	}
	if len(run.containers) == 0 {
		return nil, fmt.Errorf("%w for label %q", domain.ErrNoContainers, run.cp.Label)
	}

	run.ledger.register(run.containers)
	if req.DryRun {
		return s.summarize(run, nil), nil
	}

	if run.release == nil {
		release, err := s.store.Lock(storeCtx, run.cp.RunID)
		if err != nil {
			return nil, err
		}
		run.release = release
	}

	// 5. Fetch
	run.cp.Phase = domain.PhaseFetching
	if err := s.save(storeCtx, run.cp); err != nil {
		return nil, err
	}
	if err := s.fetch(ctx, storeCtx, run); err != nil {
		return nil, err
	}
	if len(run.cp.Pending) > 0 {
		return s.interrupt(storeCtx, run)
	}

	// 6. Render
	run.cp.Phase = domain.PhaseRendering
	if err := s.save(storeCtx, run.cp); err != nil {
		return nil, err
	}
	outputs, renderErr := s.render(storeCtx, run)

	summary := s.summarize(run, outputs)
	if renderErr != nil {
		return summary, renderErr
	}

	// 7. Complete
	run.cp.Phase = domain.PhaseCompleted
	if err := s.save(storeCtx, run.cp); err != nil {
		return summary, err
	}
	summary.Phase = domain.PhaseCompleted
	run.emit(domain.ProgressEvent{Phase: domain.PhaseCompleted, Total: summary.Total,
		Done: summary.Total - summary.Pending, Failed: summary.Failed})
	log.Info("export completed", "succeeded", summary.Succeeded, "failed", summary.Failed,
		"skipped", summary.Skipped, "files", len(outputs))
	return summary, nil
}

// begin creates a new checkpoint or loads and locks the one being resumed.
func (s *ExportService) begin(ctx context.Context, req domain.ExportRequest) (*exportRun, error) {
	run := &exportRun{req: req, start: s.now()}

	if req.ResumeRunID == "" {
		kinds, err := s.selectSources(req.Sources)
		if err != nil {
			return nil, err
		}
		run.kinds = kinds
		run.cp = domain.NewCheckpoint(s.newRunID(), req.Label, s.cfg.Profile, kinds, run.start)
		run.ledger = newLedger(run.cp)
		return run, nil
	}

	if req.DryRun {
		return nil, fmt.Errorf("%w: --dry-run cannot be combined with --resume", domain.ErrInvalidInput)
	}

	cp, err := s.store.Load(ctx, req.ResumeRunID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("checkpoint %s: %w", req.ResumeRunID, err)
		}
		return nil, fmt.Errorf("load checkpoint %s: %w", req.ResumeRunID, err)
	}
	release, err := s.store.Lock(ctx, cp.RunID)
	if err != nil {
		return nil, err
	}
	if req.Label != "" && req.Label != cp.Label {
		_ = release()
		return nil, fmt.Errorf("%w: run %s exported label %q, not %q",
			domain.ErrInvalidInput, cp.RunID, cp.Label, req.Label)
	}

	kinds := cp.Sources
	if len(kinds) == 0 {
		kinds = s.factory.Available()
	}
	for _, k := range kinds {
		if s.factory.Endpoint(k) == "" {
			_ = release()
			return nil, fmt.Errorf("%w: run %s needs %s but no URL is configured", domain.ErrInvalidInput, cp.RunID, k.Title())
		}
	}

	results, err := s.store.Results(ctx, cp.RunID)
	if err != nil {
		_ = release()
		return nil, fmt.Errorf("load results for %s: %w", cp.RunID, err)
	}

	run.req.Label = cp.Label
	run.cp = cp
	run.kinds = kinds
	run.resumed = true
	run.release = release
	run.ledger = newLedger(cp)
	run.ledger.restore(results)
	cp.Phase = domain.PhaseResuming
	return run, nil
}

// selectSources filters the requested upstreams to those with a configured URL.
func (s *ExportService) selectSources(requested []domain.SourceKind) ([]domain.SourceKind, error) {
	available := s.factory.Available()
	if len(available) == 0 {
		return nil, fmt.Errorf("%w: set CONFLUENCE_URL and/or JIRA_URL", domain.ErrInvalidInput)
	}
	if len(requested) == 0 {
		return available, nil
	}

	var kinds []domain.SourceKind
	for _, k := range domain.AllSourceKinds() {
		if !slices.Contains(requested, k) {
			continue
		}
		if !slices.Contains(available, k) {
			return nil, fmt.Errorf("%w: %s requested but no URL is configured", domain.ErrInvalidInput, k.Title())
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// enumerate lists containers from every connector. A non-auth failure of one
// upstream is logged and that upstream skipped.
func (s *ExportService) enumerate(ctx context.Context, run *exportRun, connectors []driven.Connector) error {
	if !run.resumed {
		run.cp.Phase = domain.PhaseEnumerating
	}
	run.emit(domain.ProgressEvent{Message: "enumerating " + run.cp.Label})

	for _, c := range connectors {
		logger.Section("Enumerate " + c.Kind().Title())
		containers, err := c.Enumerate(ctx, run.cp.Label)
		if err != nil {
			if isCancelled(ctx, err) {
				return err
			}
			if errors.Is(err, domain.ErrAuthInvalid) || errors.Is(err, domain.ErrAuthRequired) {
				return fmt.Errorf("enumerate %s: %w", c.Kind().Title(), err)
			}
			logger.Warn("skipping %s: enumeration failed: %v", c.Kind().Title(), err)
			run.emit(domain.ProgressEvent{Message: c.Kind().Title() + " skipped: " + err.Error()})
			continue
		}

		for _, container := range containers {
			if len(container.Items) == 0 {
				continue
			}
			run.containers = append(run.containers, container)
			logger.Debug("%s %s: %d items", c.Kind().Title(), container.DisplayName(), len(container.Items))
		}
	}
	return nil
}

// interrupt records the run as interrupted and returns its summary.
func (s *ExportService) interrupt(ctx context.Context, run *exportRun) (*domain.ExportSummary, error) {
	run.cp.Phase = domain.PhaseInterrupted
	if run.release == nil {
		release, err := s.store.Lock(ctx, run.cp.RunID)
		if err != nil {
			return nil, err
		}
		run.release = release
	}
	if err := s.save(ctx, run.cp); err != nil {
		return nil, err
	}
	summary := s.summarize(run, nil)
	summary.Phase = domain.PhaseInterrupted
	summary.Resumable = s.cfg.Checkpoint.Enabled
	run.emit(domain.ProgressEvent{Phase: domain.PhaseInterrupted, Total: summary.Total,
		Done: summary.Total - summary.Pending, Failed: summary.Failed})
	logger.Warn("run %s interrupted with %d items pending", run.cp.RunID, summary.Pending)
	return summary, nil
}

func (s *ExportService) save(ctx context.Context, cp *domain.Checkpoint) error {
	cp.UpdatedAt = s.now()
	if err := s.store.Save(ctx, cp); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cp.RunID, err)
	}
	return nil
}

func (s *ExportService) purgeExpired(ctx context.Context) {
	if !s.cfg.Checkpoint.Enabled || s.cfg.Checkpoint.Retention <= 0 {
		return
	}
	n, err := s.store.PurgeOlderThan(ctx, s.now().Add(-s.cfg.Checkpoint.Retention))
	if err != nil {
		logger.Warn("purging expired checkpoints: %v", err)
		return
	}
	if n > 0 {
		logger.Info("purged %d expired checkpoints", n)
	}
}

func (s *ExportService) summarize(run *exportRun, outputs []domain.ContainerOutput) *domain.ExportSummary {
	total, succeeded, failed, skipped, pending := run.ledger.counts()
	health := s.factory.Health()

	summary := &domain.ExportSummary{
		RunID:      run.cp.RunID,
		Label:      run.cp.Label,
		Phase:      run.cp.Phase,
		Containers: len(run.containers),
		Total:      total,
		Succeeded:  succeeded,
		Failed:     failed,
		Skipped:    skipped,
		Pending:    pending,
		CacheHits:  health.CacheHits,
		HitRatio:   health.HitRatio(),
		Upstreams:  health.Upstreams,
		Outputs:    outputs,
		Failures:   run.ledger.failures(),
		Duration:   s.now().Sub(run.start),
		DryRun:     run.req.DryRun,
	}
	if run.req.DryRun {
		summary.Phase = domain.PhaseCompleted
		summary.Planned = run.containers
	} else {
		summary.OutputDir = domain.RunDir(s.cfg.Output.Dir, run.cp.Label, run.cp.ExportDate)
	}
	return summary
}

// Validate checks connectivity and credentials for every configured upstream.
func (s *ExportService) Validate(ctx context.Context) []driving.ConnectorStatus {
	kinds := s.factory.Available()
	statuses := make([]driving.ConnectorStatus, 0, len(kinds))

	connectors, err := s.factory.Create(ctx, s.cfg, kinds)
	if err != nil {
		for _, k := range kinds {
			statuses = append(statuses, driving.ConnectorStatus{Kind: k, URL: s.factory.Endpoint(k), Err: err})
		}
		return statuses
	}

	for _, c := range connectors {
		err := c.Validate(ctx)
		if err != nil {
			logger.Debug("%s validation failed: %v", c.Kind().Title(), err)
		}
		statuses = append(statuses, driving.ConnectorStatus{Kind: c.Kind(), URL: s.factory.Endpoint(c.Kind()), Err: err})
		_ = c.Close()
	}
	return statuses
}

func isCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
