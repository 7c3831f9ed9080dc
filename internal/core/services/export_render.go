package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/logger"
)

// render writes one file per container. Containers with failed items still
// render; a container that cannot be written does not stop the others.
func (s *ExportService) render(ctx context.Context, run *exportRun) ([]domain.ContainerOutput, error) {
	logger.Section("Render")
	dir := domain.RunDir(s.cfg.Output.Dir, run.cp.Label, run.cp.ExportDate)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var (
		outputs []domain.ContainerOutput
		errs    []error
	)
	for i, c := range run.containers {
		report := domain.ContainerReport{
			Label:       run.cp.Label,
			Container:   c,
			Results:     run.ledger.resultsFor(c),
			GeneratedAt: s.now(),
		}
		path := filepath.Join(dir, domain.OutputFileName(run.cp.Label, c, run.cp.ExportDate, s.renderer.Format()))

		run.emit(domain.ProgressEvent{
			Phase:     domain.PhaseRendering,
			Total:     len(run.containers),
			Done:      i,
			Container: c.DisplayName(),
			Message:   "rendering " + filepath.Base(path),
		})

		if err := s.writeReport(ctx, path, report); err != nil {
			logger.Error("rendering %s: %v", c.DisplayName(), err)
			errs = append(errs, fmt.Errorf("render %s: %w", c.DisplayName(), err))
			continue
		}

		failed := len(report.Failures())
		outputs = append(outputs, domain.ContainerOutput{
			Container: c.DisplayName(),
			Path:      path,
			Items:     len(report.Results),
			Failed:    failed,
		})
		logger.Info("wrote %s (%d items, %d not exported)", path, len(report.Results), failed)
	}
	return outputs, errors.Join(errs...)
}

// writeReport renders into a temporary file and renames it into place.
func (s *ExportService) writeReport(ctx context.Context, path string, report domain.ContainerReport) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".render-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := s.renderer.Render(ctx, report, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
