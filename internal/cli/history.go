package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/raphaelgruber/ptflow-importer/internal/models"
	"github.com/raphaelgruber/ptflow-importer/internal/oplog"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [item-id]",
	Short: "List or inspect recorded outcomes",
	Long: `List the latest outcome of every exercise in a bookkeeping log, or every
recorded attempt for one exercise.

Examples:
  ptflow-importer history -b 2024-03         # Latest outcome per exercise
  ptflow-importer history -b 2024-03 0042    # All attempts for exercise 0042`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	path, err := logPath()
	if err != nil {
		return err
	}

	hist, err := oplog.Read(path)
	if err != nil {
		return fmt.Errorf("load outcome log: %w", err)
	}
	if hist.TornTail {
		warnf("ignoring incomplete last entry of %s", path)
	}

	// If item ID provided, show its attempts
	if len(args) == 1 {
		return showItem(cmd.OutOrStdout(), hist, args[0])
	}

	listLatest(cmd.OutOrStdout(), hist)
	return nil
}

func listLatest(w io.Writer, hist *oplog.History) {
	latest := hist.Latest()
	if len(latest) == 0 {
		fmt.Fprintln(w, "No outcomes recorded")
		return
	}

	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	fmt.Fprintf(w, "%-10s %-8s %-38s %-20s %s\n", "ID", "STATUS", "REMOTE ID", "RECORDED", "REASON")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	for _, id := range ids {
		o := latest[id]
		fmt.Fprintf(w, "%-10s %-8s %-38s %-20s %s\n",
			o.ID, o.Status, o.RemoteID, o.Timestamp.Format("2006-01-02 15:04:05"), o.Reason)
	}
}

func showItem(w io.Writer, hist *oplog.History, id string) error {
	var attempts []models.Outcome
	for _, o := range hist.Entries {
		if o.ID == id {
			attempts = append(attempts, o)
		}
	}
	if len(attempts) == 0 {
		return fmt.Errorf("no outcomes recorded for %s", id)
	}

	fmt.Fprintf(w, "Exercise: %s\n", id)
	fmt.Fprintf(w, "  Attempts: %d\n", len(attempts))
	fmt.Fprintf(w, "  Latest: %s\n", attempts[len(attempts)-1].Status)

	for i, o := range attempts {
		fmt.Fprintf(w, "\n#%d %s %s\n", i+1, o.Status, o.Timestamp.Format(time.RFC3339))
		if o.RunID != "" {
			fmt.Fprintf(w, "  Run: %s\n", o.RunID)
		}
		if o.RemoteID != "" {
			fmt.Fprintf(w, "  Remote ID: %s\n", o.RemoteID)
		}
		for _, a := range o.Assets {
			assetID := a.AssetID
			if assetID == "" {
				assetID = "(not uploaded)"
			}
			fmt.Fprintf(w, "  Image: %s -> %s\n", a.Path, assetID)
		}
		if o.Reason != "" {
			fmt.Fprintf(w, "  Reason: [%s] %s\n", o.Kind, o.Reason)
		}
	}
	return nil
}
