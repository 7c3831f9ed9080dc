package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// printSummary writes the end-of-run report.
func printSummary(w io.Writer, s *domain.ExportSummary) {
	if s.DryRun {
		printPlan(w, s)
		return
	}

	fmt.Fprintf(w, "\nRun       %s\n", s.RunID)
	fmt.Fprintf(w, "Label     %s\n", s.Label)
	fmt.Fprintf(w, "Phase     %s\n", s.Phase)
	fmt.Fprintf(w, "Items     %d total, %d succeeded, %d failed, %d skipped, %d pending\n",
		s.Total, s.Succeeded, s.Failed, s.Skipped, s.Pending)
	fmt.Fprintf(w, "Cache     %d hits (%.1f%% hit ratio)\n", s.CacheHits, s.HitRatio*100)
	if len(s.Upstreams) > 0 {
		parts := make([]string, 0, len(s.Upstreams))
		for _, u := range s.Upstreams {
			parts = append(parts, fmt.Sprintf("%s %s (%d calls, %d retries)", u.Kind, u.Circuit, u.Calls, u.Retries))
		}
		fmt.Fprintf(w, "Circuits  %s\n", strings.Join(parts, ", "))
	}
	fmt.Fprintf(w, "Duration  %s\n", s.Duration.Round(time.Millisecond))

	if len(s.Outputs) > 0 {
		fmt.Fprintf(w, "\nFiles in %s:\n", s.OutputDir)
		for _, o := range s.Outputs {
			fmt.Fprintf(w, "  %s (%d items, %d not exported)\n", o.Path, o.Items, o.Failed)
		}
	}

	if len(s.Failures) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		for _, f := range s.Failures {
			fmt.Fprintf(w, "  %-24s %-20s %s\n", f.Item.Key(), f.Reason, f.Error)
		}
	}

	switch {
	case s.Interrupted() && s.Resumable:
		fmt.Fprintf(w, "\nInterrupted with %d items pending. Resume with:\n  ctxexport export --resume %s\n",
			s.Pending, s.RunID)
	case s.Interrupted():
		fmt.Fprintf(w, "\nInterrupted with %d items pending. Checkpoints are disabled, so this run\n"+
			"cannot be resumed; run the export again to finish it.\n", s.Pending)
	}
}

func printPlan(w io.Writer, s *domain.ExportSummary) {
	fmt.Fprintf(w, "Dry run for %q: %d containers, %d items\n", s.Label, len(s.Planned), s.Total)
	for _, c := range s.Planned {
		fmt.Fprintf(w, "  %-10s %s (%s): %d items\n", c.Kind.Title(), c.DisplayName(), c.Key, len(c.Items))
		for _, item := range c.Items {
			fmt.Fprintf(w, "    %s%s %s\n", strings.Repeat("  ", item.Depth), item.ID, item.Title)
		}
	}
}
