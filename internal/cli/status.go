package cli

import (
	"fmt"

	"github.com/raphaelgruber/ptflow-importer/internal/oplog"
	"github.com/raphaelgruber/ptflow-importer/internal/service"
	"github.com/spf13/cobra"
)

var statusSource string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize a bookkeeping log",
	Long: `Show the latest outcome counts of a bookkeeping log without contacting the
server. With a source, also list the ids that are missing from the log and
the logged ids that are no longer in the source.

Examples:
  ptflow-importer status -b 2024-03
  ptflow-importer status -b 2024-03 --source sheet.csv`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusSource, "source", "", "CSV export to reconcile against (default $PTFLOW_SOURCE)")
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	var rows [][]string
	srcPath := firstNonEmpty(statusSource, cfg.Source)
	if srcPath != "" {
		provider, err := openSource(srcPath)
		if err != nil {
			return err
		}
		if rows, err = provider.Rows(cmd.Context()); err != nil {
			return fmt.Errorf("read source: %w", err)
		}
	}

	s := service.Reconcile(service.SourceIDs(rows), hist.Latest())
	s.TotalInSource = len(rows)
	printStatus(cmd.OutOrStdout(), bookkeepingID, s, srcPath != "", cfg.SummaryMaxIDs)
	return nil
}
