package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/raphaelgruber/ptflow-importer/internal/assets"
	"github.com/raphaelgruber/ptflow-importer/internal/client"
	"github.com/raphaelgruber/ptflow-importer/internal/config"
	"github.com/raphaelgruber/ptflow-importer/internal/metrics"
	"github.com/raphaelgruber/ptflow-importer/internal/service"
	"github.com/raphaelgruber/ptflow-importer/internal/source"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	errCredentials = errors.New("server and session are required")
	errNoData      = errors.New("no data found in source")
)

// reportedError wraps an error whose message was already shown to the operator.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// Reported reports whether err was already printed by the command.
func Reported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

// report prints msg on its own line and marks err as shown.
func report(w io.Writer, msg string, err error) error {
	fmt.Fprintln(w, msg)
	return reportedError{err: err}
}

var (
	runImageDir  string
	runSource    string
	runServer    string
	runSession   string
	runDryRun    bool
	runOnInvalid string
	runNoUI      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Migrate the exercises of a sheet export",
	Long: `Create every selected exercise of the source on the server, upload its
images, and record the outcome in the bookkeeping log.

Exercises already recorded as OK are skipped. Press Ctrl+C to stop after the
exercise in flight; rerun with the same bookkeeping id to continue.

Examples:
  ptflow-importer run --image-dir ./images --bookkeeping-id 2024-03 --source sheet.csv
  ptflow-importer run -b 2024-03 --image-dir ./images --source sheet.csv --on-invalid skip
  ptflow-importer run -b test --image-dir ./images --source sheet.csv --dry-run`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runImageDir, "image-dir", "", "directory holding the exercise images (required)")
	runCmd.Flags().StringVar(&runSource, "source", "", "CSV export of the exercise sheet (default $PTFLOW_SOURCE)")
	runCmd.Flags().StringVar(&runServer, "server", "", "server URL (default $PTFLOW_SERVER)")
	runCmd.Flags().StringVar(&runSession, "session", "", "session token (default $PTFLOW_SESSION)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "use an in-memory server and a scratch copy of the log")
	runCmd.Flags().StringVar(&runOnInvalid, "on-invalid", "", "invalid row policy: abort or skip (default $PTFLOW_ON_INVALID)")
	runCmd.Flags().BoolVar(&runNoUI, "no-progress", false, "log progress instead of showing a progress bar")
	_ = runCmd.MarkFlagRequired("image-dir")
}

// importOptions are the resolved inputs of one import session.
type importOptions struct {
	ImageDir  string
	Source    string
	Server    string
	Session   string
	DryRun    bool
	OnInvalid string
	Progress  bool

	// Stderr receives text logs. Nil means os.Stderr.
	Stderr io.Writer
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := importOptions{
		ImageDir:  runImageDir,
		Source:    firstNonEmpty(runSource, cfg.Source),
		Server:    firstNonEmpty(runServer, cfg.Server),
		Session:   firstNonEmpty(runSession, cfg.Session),
		DryRun:    runDryRun,
		OnInvalid: firstNonEmpty(runOnInvalid, cfg.OnInvalid),
		Progress:  !runNoUI && term.IsTerminal(int(os.Stdout.Fd())),
	}
	return runImport(ctx, opts, cmd.OutOrStdout())
}

// runImport runs one session and prints its report to out.
// Every returned error is a setup failure; item failures are reported only.
func runImport(ctx context.Context, opts importOptions, out io.Writer) error {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	if !opts.DryRun && (opts.Server == "" || opts.Session == "") {
		return report(stderr, "Server and session are required", errCredentials)
	}

	path, err := logPath()
	if err != nil {
		return err
	}
	policy, err := service.ParseInvalidPolicy(opts.OnInvalid)
	if err != nil {
		return err
	}
	if err := checkDir(opts.ImageDir); err != nil {
		return err
	}

	provider, err := openSource(opts.Source)
	if err != nil {
		return err
	}
	rows, err := provider.Rows(ctx)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	if len(rows) == 0 {
		return report(stderr, "No data found in source", errNoData)
	}

	collector := metrics.NewCollector()
	uploader, err := newUploader(opts, collector)
	if err != nil {
		return err
	}

	outcomeLog := path
	if opts.DryRun {
		scratch, cleanup, err := scratchLog(path)
		if err != nil {
			return err
		}
		defer cleanup()
		path = scratch
	}

	logStderr, logFile := stderr, cfg.LogFile
	if opts.Progress {
		// The progress UI owns the terminal
		logStderr, logFile = io.Discard, progressLogFile(cfg.LogFile, outcomeLog)
		defer fmt.Fprintf(stderr, "Log: %s\n", logFile)
	}
	logger, closeLog := config.SetupLogger(logFile, cfg.LogLevel, logStderr)
	defer func() {
		if err := closeLog(); err != nil {
			warnf("failed to close log file: %v", err)
		}
	}()

	runCfg := service.Config{
		LogPath:         path,
		Priorities:      cfg.Priorities,
		OnInvalid:       policy,
		MetadataTimeout: cfg.MetadataTimeout,
		UploadTimeout:   cfg.UploadTimeout,
		Logger:          logger,
	}

	var program *tea.Program
	if opts.Progress {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		program = tea.NewProgram(newProgressModel(cancel))
		runCfg.OnItem = func(e service.ItemEvent) { program.Send(itemMsg(e)) }
	}

	runner := service.NewRunner(runCfg, uploader, assets.NewResolver(osfs.New(opts.ImageDir)))
	logger.Info("session started",
		"run_id", runner.RunID(),
		"log", path,
		"source", opts.Source,
		"rows", len(rows),
		"dry_run", opts.DryRun)

	var summary *service.Summary
	if program != nil {
		summary, err = runWithProgress(program, func() (*service.Summary, error) {
			return runner.Run(ctx, rows)
		})
	} else {
		summary, err = runner.Run(ctx, rows)
	}
	if err != nil {
		return err
	}

	return printReport(out, summary, collector.Snapshot(), cfg.SummaryMaxIDs)
}

// progressLogFile returns where logs go while the progress UI hides stderr:
// the configured file, or one next to the outcome log.
func progressLogFile(configured, outcomeLog string) string {
	if configured != "" {
		return configured
	}
	return strings.TrimSuffix(outcomeLog, filepath.Ext(outcomeLog)) + ".importer.log"
}

func newUploader(opts importOptions, collector *metrics.Collector) (service.Uploader, error) {
	if opts.DryRun {
		mem := client.NewMemoryClient()
		mem.Metrics = collector
		return mem, nil
	}
	c, err := client.New(client.Options{
		Server:          opts.Server,
		Session:         opts.Session,
		SessionCookie:   cfg.SessionCookie,
		MetadataTimeout: cfg.MetadataTimeout,
		UploadTimeout:   cfg.UploadTimeout,
		Metrics:         collector,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

// openSource returns a provider for the CSV export at path.
func openSource(path string) (source.Provider, error) {
	if path == "" {
		return nil, errors.New("--source is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	src := source.NewCSVFile(osfs.New(filepath.Dir(abs)), filepath.Base(abs))
	src.SkipRows = cfg.SourceSkipRows
	return src, nil
}

func checkDir(dir string) error {
	if dir == "" {
		return errors.New("--image-dir is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("image dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("image dir: %s is not a directory", dir)
	}
	return nil
}

// scratchLog copies the outcome log at path into a temporary directory so a
// dry run resumes from the real state without recording anything in it.
func scratchLog(path string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "ptflow-dry-run-")
	if err != nil {
		return "", nil, fmt.Errorf("create scratch dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	scratch := filepath.Join(dir, filepath.Base(path))
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return scratch, cleanup, nil
	case err != nil:
		cleanup()
		return "", nil, fmt.Errorf("read outcome log: %w", err)
	}
	if err := os.WriteFile(scratch, data, 0644); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("copy outcome log: %w", err)
	}
	return scratch, cleanup, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
