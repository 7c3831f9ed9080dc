package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	configfile "github.com/custodia-labs/ctxexport/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ctxexport/internal/adapters/driven/render/markdown"
	"github.com/custodia-labs/ctxexport/internal/adapters/driven/render/pdf"
	filestore "github.com/custodia-labs/ctxexport/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/ctxexport/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ctxexport/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ctxexport/internal/connectors"
	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driven"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driving"
	"github.com/custodia-labs/ctxexport/internal/core/services"
	"github.com/custodia-labs/ctxexport/internal/logger"
)

// runtime holds the services one command needs.
type runtime struct {
	cfg         domain.ExportConfig
	settings    driving.SettingsService
	exporter    driving.Exporter
	checkpoints driving.CheckpointService
	closers     []io.Closer
}

// Close releases stores and log files.
func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			logger.Debug("closing runtime: %v", err)
		}
	}
	r.closers = nil
}

type runtimeOptions struct {
	// profile overrides the profile named in the config file or environment.
	profile domain.Profile

	// override applies command flags on top of the resolved config.
	override func(cfg *domain.ExportConfig)
}

// Composition roots. Tests replace these.
var (
	loadSettings = newSettings
	loadRuntime  = newRuntime
)

func newSettings() (driving.SettingsService, error) {
	store, err := configfile.NewConfigStore(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return services.NewSettingsService(store, nil), nil
}

func newRuntime(opts runtimeOptions) (*runtime, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	// 1. Resolve configuration
	cfg, err := settings.Resolve(opts.profile)
	if err != nil {
		return nil, err
	}
	if opts.override != nil {
		opts.override(cfg)
		if err := settings.Validate(cfg); err != nil {
			return nil, err
		}
	}

	rt := &runtime{cfg: *cfg, settings: settings}

	// 2. Logging
	if err := rt.configureLogger(cfg.Logging); err != nil {
		rt.Close()
		return nil, err
	}

	// 3. Checkpoint store
	store, err := openStore(cfg.Checkpoint)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if c, ok := store.(io.Closer); ok {
		rt.closers = append(rt.closers, c)
	}

	// 4. Renderer and connectors
	renderer, err := newRenderer(cfg.Output.Format)
	if err != nil {
		rt.Close()
		return nil, err
	}
	factory := connectors.NewFactory(settings.Endpoints(), settings.Credentials(), version)

	rt.exporter = services.NewExportService(*cfg, factory, store, renderer)
	rt.checkpoints = services.NewCheckpointService(store)
	logger.Debug("profile %s, checkpoints %s in %s, output %s in %s",
		cfg.Profile, cfg.Checkpoint.Backend, cfg.Checkpoint.Dir, cfg.Output.Format, cfg.Output.Dir)
	return rt, nil
}

// configureLogger applies the configured level and format unless a flag set them.
func (r *runtime) configureLogger(cfg domain.LoggingConfig) error {
	level, format := cfg.Level, cfg.Format
	if logLevel != "" {
		level = logLevel
	}
	if logFormat != "" {
		format = logFormat
	}
	if err := logger.Configure(level, format); err != nil {
		return err
	}

	if cfg.File == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, f))
	r.closers = append(r.closers, closerFunc(func() error {
		logger.SetOutput(os.Stderr)
		return f.Close()
	}))
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openStore picks the checkpoint backend. With checkpoints disabled progress
// lives in memory and cannot be resumed.
func openStore(cfg domain.CheckpointConfig) (driven.RunStore, error) {
	if !cfg.Enabled {
		return memory.NewCheckpointStore(), nil
	}
	switch cfg.Backend {
	case domain.CheckpointBackendSQLite:
		store, err := sqlite.NewStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open checkpoint database: %w", err)
		}
		return store, nil
	case domain.CheckpointBackendFile, "":
		store, err := filestore.NewStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open checkpoint directory: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: checkpoint backend %q", domain.ErrUnsupportedType, cfg.Backend)
	}
}

func newRenderer(format domain.OutputFormat) (driven.Renderer, error) {
	switch format {
	case domain.OutputPDF:
		return pdf.New(), nil
	case domain.OutputMarkdown:
		return markdown.New(), nil
	default:
		return nil, fmt.Errorf("%w: output format %q", domain.ErrUnsupportedType, format)
	}
}
