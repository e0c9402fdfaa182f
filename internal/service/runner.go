package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/ptflow-importer/internal/models"
	"github.com/raphaelgruber/ptflow-importer/internal/oplog"
	"github.com/raphaelgruber/ptflow-importer/internal/parser"
)

// Defaults for Config.
const (
	DefaultMetadataTimeout = 10 * time.Second
	DefaultUploadTimeout   = 60 * time.Second
)

// DefaultPriorities are the priority cells selected when none are configured.
var DefaultPriorities = []string{"1", "2"}

// InvalidPolicy decides what happens to a row that fails validation.
type InvalidPolicy string

const (
	// PolicyAbort stops the session with a fatal error.
	PolicyAbort InvalidPolicy = "abort"
	// PolicySkip records a SKIPPED outcome and continues.
	PolicySkip InvalidPolicy = "skip"
)

// ParseInvalidPolicy parses a policy name. The empty string is PolicyAbort.
func ParseInvalidPolicy(s string) (InvalidPolicy, error) {
	switch InvalidPolicy(s) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicySkip:
		return PolicySkip, nil
	}
	return "", fmt.Errorf("unknown invalid-data policy %q (want %s or %s)", s, PolicyAbort, PolicySkip)
}

// ItemEvent reports the handling of one selected row.
type ItemEvent struct {
	// Index is 1-based among the selected rows; Total is their count.
	Index int
	Total int

	ID string

	// AlreadyDone is set when the row was passed over because of an earlier OK outcome.
	AlreadyDone bool

	// Status and Reason of the appended outcome; empty when nothing was appended.
	Status models.Status
	Reason string
}

// Config configures a session. It is the only input besides the rows and
// the injected capabilities; the runner reads no process-wide state.
type Config struct {
	// LogPath is the outcome log of the session.
	LogPath string

	// Priorities lists the accepted priority cells. Empty selects DefaultPriorities.
	Priorities []string

	OnInvalid InvalidPolicy

	MetadataTimeout time.Duration
	UploadTimeout   time.Duration

	// Optional
	Logger *slog.Logger
	RunID  string
	OnItem func(ItemEvent)
	Now    func() time.Time
}

// Runner executes one session: it selects rows, skips finished items,
// migrates the rest strictly in order and records every outcome.
type Runner struct {
	cfg      Config
	assets   AssetStore
	orch     *Orchestrator
	logger   *slog.Logger
	accepted map[string]bool
}

// NewRunner creates a runner.
func NewRunner(cfg Config, uploader Uploader, assets AssetStore) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.OnInvalid == "" {
		cfg.OnInvalid = PolicyAbort
	}
	if len(cfg.Priorities) == 0 {
		cfg.Priorities = DefaultPriorities
	}

	accepted := make(map[string]bool, len(cfg.Priorities))
	for _, p := range cfg.Priorities {
		accepted[p] = true
	}

	logger := cfg.Logger.With("run_id", cfg.RunID)
	return &Runner{
		cfg:      cfg,
		assets:   assets,
		orch:     NewOrchestrator(uploader, assets, logger, cfg.MetadataTimeout, cfg.UploadTimeout),
		logger:   logger,
		accepted: accepted,
	}
}

// RunID returns the id stamped on every outcome of this session.
func (r *Runner) RunID() string {
	return r.cfg.RunID
}

// counters tracks the items of one session.
type counters struct {
	alreadyDone int
	attempted   int
	succeeded   int
	skipped     int
	failed      int
}

func (c *counters) add(s models.Status) {
	c.attempted++
	switch s {
	case models.StatusOK:
		c.succeeded++
	case models.StatusSkipped:
		c.skipped++
	case models.StatusFailed:
		c.failed++
	}
}

// Run processes rows and returns the session summary.
//
// A corrupt log, an invalid row under PolicyAbort and a failed log append
// end the session with an error; every item finished before that keeps its
// outcome. Cancelling ctx stops the session between items: the item in
// flight is finished and recorded first.
func (r *Runner) Run(ctx context.Context, rows [][]string) (*Summary, error) {
	hist, err := oplog.Read(r.cfg.LogPath)
	if err != nil {
		return nil, fmt.Errorf("load outcome log: %w", err)
	}
	if hist.TornTail {
		r.logger.Warn("ignoring incomplete last entry of outcome log", "path", r.cfg.LogPath)
	}
	logged := hist.Latest()
	r.logger.Info("outcome log loaded", "path", r.cfg.LogPath, "entries", len(hist.Entries), "items", len(logged))

	selected := r.selectRows(rows)
	excluded := len(rows) - len(selected)
	r.logger.Info("rows selected", "total", len(rows), "selected", len(selected), "excluded", excluded, "priorities", r.cfg.Priorities)

	var c counters
	interrupted := false
	for i, row := range selected {
		if ctx.Err() != nil {
			interrupted = true
			r.logger.Warn("session interrupted", "processed", i, "remaining", len(selected)-i)
			break
		}

		event := ItemEvent{Index: i + 1, Total: len(selected), ID: parser.RowID(row)}

		if prev, ok := logged[event.ID]; ok && prev.Done() {
			c.alreadyDone++
			event.AlreadyDone = true
			r.logger.Debug("already migrated", "id", event.ID, "remote_id", prev.RemoteID)
			r.emit(event)
			continue
		}

		outcome, err := r.processRow(context.WithoutCancel(ctx), row)
		if err != nil {
			return nil, err
		}
		if outcome == nil {
			c.skipped++
			c.attempted++
			event.Status = models.StatusSkipped
			r.emit(event)
			continue
		}

		if err := oplog.Append(r.cfg.LogPath, *outcome); err != nil {
			return nil, fmt.Errorf("record outcome of %s: %w", outcome.ID, err)
		}
		logged[outcome.ID] = *outcome
		c.add(outcome.Status)

		event.Status = outcome.Status
		event.Reason = outcome.Reason
		r.emit(event)
	}

	final, err := oplog.Load(r.cfg.LogPath)
	if err != nil {
		return nil, fmt.Errorf("reload outcome log: %w", err)
	}

	summary := Reconcile(SourceIDs(rows), final)
	summary.RunID = r.cfg.RunID
	summary.TotalInSource = len(rows)
	summary.Excluded = excluded
	summary.AlreadyDone = c.alreadyDone
	summary.Attempted = c.attempted
	summary.Succeeded = c.succeeded
	summary.Skipped = c.skipped
	summary.Failed = c.failed
	summary.Interrupted = interrupted

	r.logger.Info("session finished",
		"attempted", c.attempted,
		"succeeded", c.succeeded,
		"skipped", c.skipped,
		"failed", c.failed,
		"already_done", c.alreadyDone,
		"interrupted", interrupted)
	return summary, nil
}

// processRow validates, resolves and migrates one row. A nil outcome with a
// nil error means the row was skipped without a record.
func (r *Runner) processRow(ctx context.Context, row []string) (*models.Outcome, error) {
	item, err := parser.ParseRow(row)
	if err != nil {
		id := parser.RowID(row)
		if r.cfg.OnInvalid == PolicyAbort {
			r.logger.Error("invalid row, aborting session", "id", id, "error", err)
			return nil, err
		}
		if id == "" {
			// Nothing to key an outcome on.
			r.logger.Warn("skipping row without id", "error", err)
			return nil, nil
		}
		r.logger.Warn("skipping invalid row", "id", id, "error", err)
		return r.outcome(models.FromItemError(models.NewItemError(id, err), "", nil, r.cfg.Now())), nil
	}

	paths, err := r.assets.Resolve(item.ID)
	if err != nil {
		ie := &models.ItemError{ID: item.ID, Kind: models.KindNoAssets, Reason: err.Error(), Err: err}
		r.logger.Warn("skipping item with unusable assets", "id", item.ID, "error", err)
		return r.outcome(models.FromItemError(ie, "", nil, r.cfg.Now())), nil
	}

	res, err := r.orch.Process(ctx, item, paths)
	if err == nil {
		r.logger.Info("item migrated", "id", item.ID, "remote_id", item.RemoteID, "assets", len(res.Assets))
		return r.outcome(models.Succeeded(item.ID, item.RemoteID, res.Assets, r.cfg.Now())), nil
	}

	var ie *models.ItemError
	if !errors.As(err, &ie) {
		ie = models.NewItemError(item.ID, err)
	}
	if ie.Status() == models.StatusFailed {
		r.logger.Error("item failed", "id", item.ID, "state", res.State, "kind", ie.Kind, "reason", ie.Reason, "remote_id", item.RemoteID)
	}
	return r.outcome(models.FromItemError(ie, item.RemoteID, res.Assets, r.cfg.Now())), nil
}

func (r *Runner) outcome(o models.Outcome) *models.Outcome {
	o.RunID = r.cfg.RunID
	return &o
}

// selectRows keeps the rows whose priority cell is accepted, in source order.
func (r *Runner) selectRows(rows [][]string) [][]string {
	selected := make([][]string, 0, len(rows))
	for _, row := range rows {
		if r.accepted[parser.RowPriority(row)] {
			selected = append(selected, row)
		}
	}
	return selected
}

func (r *Runner) emit(e ItemEvent) {
	if r.cfg.OnItem != nil {
		r.cfg.OnItem(e)
	}
}

// SourceIDs returns the non-empty ids of rows in source order.
func SourceIDs(rows [][]string) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id := parser.RowID(row); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
