package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/raphaelgruber/ptflow-importer/internal/metrics"
	"github.com/raphaelgruber/ptflow-importer/internal/service"
)

// printReport displays the session summary followed by remote call timings.
func printReport(w io.Writer, s *service.Summary, snap metrics.Snapshot, maxIDs int) error {
	fmt.Fprintln(w, reportHeadline(s))
	fmt.Fprintln(w, "═══════════════════════════════════════")

	if err := service.WriteSummary(w, s, maxIDs); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	ops := snap.Operations()
	if len(ops) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\nRemote calls (%.1f seconds):\n", snap.ElapsedSeconds)
	for _, op := range ops {
		fmt.Fprintf(w, "\n%s:\n", opLabel(op.Name))
		printOpStats(w, op.Stats)
	}
	return nil
}

func reportHeadline(s *service.Summary) string {
	t := defaultTheme
	switch {
	case s.Interrupted:
		return t.warningStyle().Render("■ Import interrupted")
	case s.Failed > 0:
		return t.errorStyle().Render(fmt.Sprintf("✗ Import finished with %d failed", s.Failed))
	default:
		return t.completedStyle().Render("✓ Import finished")
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(w io.Writer, op *metrics.OperationSnapshot) {
	fmt.Fprintf(w, "  Calls: %d, Failures: %d, Total: %dms\n", op.Count, op.Failures, op.TotalTimeMs)
	fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	if op.TotalBytes != nil && op.MaxBytes != nil {
		fmt.Fprintf(w, "  Bytes: %d total, max %d\n", *op.TotalBytes, *op.MaxBytes)
	}
}

func opLabel(op string) string {
	switch op {
	case metrics.OpCreateEntity:
		return "Create exercise"
	case metrics.OpUploadAsset:
		return "Upload image"
	case metrics.OpUpdateEntity:
		return "Update exercise"
	default:
		return op
	}
}

// printStatus displays the offline state of a bookkeeping log. Source
// reconciliation lines are printed only when source ids are known.
func printStatus(w io.Writer, id string, s *service.Summary, withSource bool, maxIDs int) {
	fmt.Fprintf(w, "Bookkeeping %s\n", id)
	fmt.Fprintln(w, strings.Repeat("═", 39))
	fmt.Fprintf(w, "Log:         %d items, %d ok, %d skipped, %d failed\n",
		s.TotalLogged, s.OKCount, s.SkippedCount, s.FailedCount)
	if !withSource {
		return
	}

	fmt.Fprintf(w, "Source:      %d rows\n", s.TotalInSource)
	if len(s.Difference()) == 0 {
		fmt.Fprintln(w, defaultTheme.completedStyle().Render("In sync with source"))
		return
	}
	if len(s.MissingFromLog) > 0 {
		fmt.Fprintf(w, "Missing from log (%d): %s\n", len(s.MissingFromLog), service.AbbreviateIDs(s.MissingFromLog, maxIDs))
	}
	if len(s.NotInSource) > 0 {
		fmt.Fprintf(w, "Not in source (%d): %s\n", len(s.NotInSource), service.AbbreviateIDs(s.NotInSource, maxIDs))
	}
}
