// Package cli provides the command-line interface for ptflow-importer.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/ptflow-importer/internal/config"
	"github.com/raphaelgruber/ptflow-importer/internal/oplog"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose       bool
	bookkeepingID string

	// Global config
	cfg config.Config
)

// errBookkeepingID is returned by commands that need the outcome log.
var errBookkeepingID = errors.New("--bookkeeping-id is required")

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ptflow-importer",
	Short: "Migrate exercises from a sheet export to a PTFLOW server",
	Long: `ptflow-importer creates every exercise of a sheet export on a PTFLOW
server, uploads its images, and records each outcome in an append-only
bookkeeping log.

Runs are resumable: rerunning with the same bookkeeping id skips exercises
that were already migrated and retries the ones that failed.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&bookkeepingID, "bookkeeping-id", "b", "", "name of the outcome log to read and append to")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
}

// logPath returns the outcome log of the selected bookkeeping id.
func logPath() (string, error) {
	if bookkeepingID == "" {
		return "", errBookkeepingID
	}
	return oplog.Path(cfg.BookkeepingDir, bookkeepingID)
}

// warnf prints a warning to stderr.
func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}
