package service

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/raphaelgruber/ptflow-importer/internal/models"
)

// DefaultSummaryMaxIDs caps id lists in the rendered summary.
const DefaultSummaryMaxIDs = 20

// Summary describes a session and the state of its log afterwards.
type Summary struct {
	RunID string

	// Source side
	TotalInSource int
	Excluded      int

	// This session
	AlreadyDone int
	Attempted   int
	Succeeded   int
	Skipped     int
	Failed      int
	Interrupted bool

	// Log side, latest outcome per id
	TotalLogged  int
	OKCount      int
	FailedCount  int
	SkippedCount int

	// Sorted id sets
	MissingFromLog []string
	NotInSource    []string
}

// Difference returns the symmetric difference of source and log ids, sorted.
func (s *Summary) Difference() []string {
	diff := slices.Concat(s.MissingFromLog, s.NotInSource)
	slices.Sort(diff)
	return slices.Compact(diff)
}

// Reconcile compares the ids of a source list with the latest outcomes of a log.
// Source ids excluded by priority count as missing when they were never logged.
func Reconcile(sourceIDs []string, logged map[string]models.Outcome) *Summary {
	inSource := make(map[string]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		inSource[id] = true
	}

	s := &Summary{
		TotalInSource:  len(sourceIDs),
		TotalLogged:    len(logged),
		MissingFromLog: []string{},
		NotInSource:    []string{},
	}

	for id := range inSource {
		if _, ok := logged[id]; !ok {
			s.MissingFromLog = append(s.MissingFromLog, id)
		}
	}
	for id, o := range logged {
		switch o.Status {
		case models.StatusOK:
			s.OKCount++
		case models.StatusFailed:
			s.FailedCount++
		case models.StatusSkipped:
			s.SkippedCount++
		}
		if !inSource[id] {
			s.NotInSource = append(s.NotInSource, id)
		}
	}

	slices.Sort(s.MissingFromLog)
	slices.Sort(s.NotInSource)
	return s
}

// WriteSummary renders s as plain text. Id lists longer than maxIDs are cut
// short; maxIDs <= 0 prints them in full.
func WriteSummary(w io.Writer, s *Summary, maxIDs int) error {
	var b strings.Builder

	if s.RunID != "" {
		fmt.Fprintf(&b, "Run %s\n", s.RunID)
	}
	fmt.Fprintf(&b, "Source:      %d rows, %d excluded by priority\n", s.TotalInSource, s.Excluded)
	fmt.Fprintf(&b, "This run:    %d attempted, %d succeeded, %d skipped, %d failed, %d already done\n",
		s.Attempted, s.Succeeded, s.Skipped, s.Failed, s.AlreadyDone)
	fmt.Fprintf(&b, "Log:         %d items, %d ok, %d skipped, %d failed\n",
		s.TotalLogged, s.OKCount, s.SkippedCount, s.FailedCount)
	if s.Interrupted {
		b.WriteString("Interrupted: rerun with the same bookkeeping id to continue\n")
	}

	writeIDs(&b, "Missing from log", s.MissingFromLog, maxIDs)
	writeIDs(&b, "Not in source", s.NotInSource, maxIDs)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeIDs(b *strings.Builder, label string, ids []string, maxIDs int) {
	if len(ids) == 0 {
		return
	}
	fmt.Fprintf(b, "%s (%d): %s\n", label, len(ids), AbbreviateIDs(ids, maxIDs))
}

// AbbreviateIDs joins ids, keeping at most limit of them.
func AbbreviateIDs(ids []string, limit int) string {
	if limit <= 0 || len(ids) <= limit {
		return strings.Join(ids, ", ")
	}
	return fmt.Sprintf("%s ... and %d more", strings.Join(ids[:limit], ", "), len(ids)-limit)
}
