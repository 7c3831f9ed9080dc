package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/ctxexport/internal/adapters/driving/tui"
	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driving"
	"github.com/custodia-labs/ctxexport/internal/logger"
)

var (
	exportResume            string
	exportProfile           string
	exportIncludeConfluence bool
	exportIncludeJira       bool
	exportDryRun            bool
	exportFormat            string
	exportOutput            string
	exportWorkers           int
	exportTUI               bool
)

var exportCmd = &cobra.Command{
	Use:   "export [label]",
	Short: "Export pages and issues carrying a label",
	Long: `Finds every Confluence page (with child pages up to four levels deep) and
Jira issue carrying the label and renders one file per space or project under
<output>/<label>/<YYYY_MM_DD>/.

Items that fail after retries are listed in each file's Attachments/Errors
appendix. Press Ctrl+C to stop: in-flight fetches finish, the checkpoint is
saved and the command prints how to resume.`,
	Example: `  ctxexport export Sprint42
  ctxexport export Sprint42 --include-jira --format markdown
  ctxexport export Sprint42 --dry-run
  ctxexport export --resume 3f1c2a9e`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportResume, "resume", "", "resume the run with this id (or unique prefix)")
	f.StringVarP(&exportProfile, "profile", "p", "", "settings profile: fast, balanced, conservative")
	f.BoolVar(&exportIncludeConfluence, "include-confluence", false, "export from Confluence only (with --include-jira, both)")
	f.BoolVar(&exportIncludeJira, "include-jira", false, "export from Jira only (with --include-confluence, both)")
	f.BoolVar(&exportDryRun, "dry-run", false, "list matching spaces, projects and item counts without fetching")
	f.StringVarP(&exportFormat, "format", "f", "", "output format: pdf, markdown")
	f.StringVarP(&exportOutput, "output", "o", "", "root output directory")
	f.IntVarP(&exportWorkers, "workers", "w", 0, "concurrent fetch workers")
	f.BoolVar(&exportTUI, "tui", false, "show a live progress view when attached to a terminal")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	var label string
	if len(args) > 0 {
		label = args[0]
	}
	if strings.TrimSpace(label) == "" && exportResume == "" {
		return fmt.Errorf("%w: a label or --resume <run-id> is required", domain.ErrInvalidInput)
	}

	opts, err := exportOptions(cmd)
	if err != nil {
		return err
	}
	rt, err := loadRuntime(opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	req := domain.ExportRequest{Label: label, DryRun: exportDryRun}
	if exportResume != "" {
		runID, err := resolveRunID(cmd.Context(), rt.checkpoints, exportResume)
		if err != nil {
			return err
		}
		req.ResumeRunID = runID
	}
	if exportIncludeConfluence {
		req.Sources = append(req.Sources, domain.SourceConfluence)
	}
	if exportIncludeJira {
		req.Sources = append(req.Sources, domain.SourceJira)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var summary *domain.ExportSummary
	switch {
	case exportTUI && isTerminal(cmd.OutOrStdout()):
		title := label
		if title == "" {
			title = req.ResumeRunID
		}
		summary, err = tui.Run(ctx, title, func(ctx context.Context, progress driving.ProgressFunc) (*domain.ExportSummary, error) {
			return rt.exporter.Export(ctx, req, progress)
		})
	default:
		if exportTUI {
			logger.Warn("--tui needs a terminal; printing progress lines instead")
		}
		printer := &progressPrinter{w: cmd.ErrOrStderr()}
		summary, err = rt.exporter.Export(ctx, req, printer.handle)
	}

	if summary != nil {
		printSummary(cmd.OutOrStdout(), summary)
	}
	if errors.Is(err, domain.ErrCheckpointLocked) && req.ResumeRunID != "" {
		err = fmt.Errorf("%w\nIf no export of this run is still going, clear the lock with:\n  ctxexport checkpoints unlock %s",
			err, req.ResumeRunID)
	}
	return err
}

func exportOptions(cmd *cobra.Command) (runtimeOptions, error) {
	var opts runtimeOptions
	if exportProfile != "" {
		p, err := domain.ParseProfile(exportProfile)
		if err != nil {
			return opts, err
		}
		opts.profile = p
	}

	var format domain.OutputFormat
	if cmd.Flags().Changed("format") {
		switch strings.ToLower(exportFormat) {
		case "pdf":
			format = domain.OutputPDF
		case "markdown", "md":
			format = domain.OutputMarkdown
		default:
			return opts, fmt.Errorf("%w: output format %q", domain.ErrUnsupportedType, exportFormat)
		}
	}

	flags := cmd.Flags()
	opts.override = func(cfg *domain.ExportConfig) {
		if format != "" {
			cfg.Output.Format = format
		}
		if flags.Changed("output") {
			cfg.Output.Dir = exportOutput
		}
		if flags.Changed("workers") {
			cfg.Batch.Workers = exportWorkers
		}
	}
	return opts, nil
}

// resolveRunID expands a run id prefix. Unknown ids are passed through so
// the export reports them as not found.
func resolveRunID(ctx context.Context, checkpoints driving.CheckpointService, prefix string) (string, error) {
	cp, err := checkpoints.Show(ctx, prefix)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return prefix, nil
		}
		return "", err
	}
	return cp.RunID, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// progressPrinter writes one line per phase change, per failure and per
// tenth of the run.
type progressPrinter struct {
	w      io.Writer
	phase  domain.RunPhase
	decile int
}

func (p *progressPrinter) handle(ev domain.ProgressEvent) {
	if ev.Phase != p.phase {
		p.phase = ev.Phase
		p.decile = -1
		fmt.Fprintf(p.w, "[%s] %s\n", shortID(ev.RunID), ev.Phase)
	}
	if ev.Message != "" {
		fmt.Fprintf(p.w, "  %s\n", ev.Message)
	}
	if ev.Item == nil || ev.Total == 0 {
		return
	}
	if ev.Status == domain.FetchFailed {
		fmt.Fprintf(p.w, "  failed %s\n", ev.Item.Key())
	}
	if d := ev.Done * 10 / ev.Total; d != p.decile {
		p.decile = d
		fmt.Fprintf(p.w, "  %d/%d items (%d failed)\n", ev.Done, ev.Total, ev.Failed)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
