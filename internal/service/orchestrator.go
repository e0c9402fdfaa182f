package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/raphaelgruber/ptflow-importer/internal/models"
)

// State is a step of the per-item upload state machine.
type State string

const (
	StateResolved         State = "Resolved"
	StateAssetsClassified State = "AssetsClassified"
	StateEntityCreated    State = "EntityCreated"
	StateAssetsUploaded   State = "AssetsUploaded"
	StateEntityUpdated    State = "EntityUpdated"
	StateDone             State = "Done"
	StateSkipped          State = "Skipped"
	StateFailed           State = "Failed"
)

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateSkipped || s == StateFailed
}

// Result is what the orchestrator knows about an item after processing it.
type Result struct {
	State State

	// Assets in upload order, with the ids of those that were uploaded.
	Assets []models.AssetRef
}

// Orchestrator drives one work item through create, upload and update.
// It keeps no state between items.
type Orchestrator struct {
	uploader        Uploader
	reader          AssetReader
	logger          *slog.Logger
	metadataTimeout time.Duration
	uploadTimeout   time.Duration
}

// NewOrchestrator creates an orchestrator. Zero timeouts fall back to the defaults.
func NewOrchestrator(uploader Uploader, reader AssetReader, logger *slog.Logger, metadataTimeout, uploadTimeout time.Duration) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if metadataTimeout <= 0 {
		metadataTimeout = DefaultMetadataTimeout
	}
	if uploadTimeout <= 0 {
		uploadTimeout = DefaultUploadTimeout
	}
	return &Orchestrator{
		uploader:        uploader,
		reader:          reader,
		logger:          logger,
		metadataTimeout: metadataTimeout,
		uploadTimeout:   uploadTimeout,
	}
}

// ClassifyAssets orders the asset paths of an item and picks start and end.
// One path means a single-image item with an empty end.
func ClassifyAssets(paths []string) (start, end string, err error) {
	switch {
	case len(paths) == 0:
		return "", "", models.ErrNoAssets
	case len(paths) > 2:
		return "", "", models.ErrTooManyAssets
	}

	sorted := slices.Clone(paths)
	slices.Sort(sorted)
	if len(sorted) == 2 {
		return sorted[0], sorted[1], nil
	}
	return sorted[0], "", nil
}

// Process migrates item using the given asset paths.
//
// On failure the returned error is a *models.ItemError and the Result holds
// the state reached. A created entity is not removed when a later step fails;
// its id stays on item.RemoteID.
func (o *Orchestrator) Process(ctx context.Context, item *models.WorkItem, paths []string) (Result, error) {
	res := Result{State: StateResolved}
	o.transition(item, res.State)

	start, end, err := ClassifyAssets(paths)
	if err != nil {
		o.logger.Info("skipping item", "id", item.ID, "reason", err, "assets", len(paths))
		return o.stop(item, res, StateSkipped, err)
	}
	ordered := []string{start}
	if end != "" {
		ordered = append(ordered, end)
	}
	for _, p := range ordered {
		res.Assets = append(res.Assets, models.AssetRef{Path: p})
	}
	res.State = StateAssetsClassified
	o.transition(item, res.State)

	remoteID, err := o.call(ctx, o.metadataTimeout, func(ctx context.Context) (string, error) {
		return o.uploader.CreateEntity(ctx, item.Payload())
	})
	if err != nil {
		return o.stop(item, res, StateFailed, fmt.Errorf("create exercise: %w", err))
	}
	if err := item.SetRemoteID(remoteID); err != nil {
		return o.stop(item, res, StateFailed, err)
	}
	res.State = StateEntityCreated
	o.transition(item, res.State, "remote_id", remoteID)

	for i, p := range ordered {
		data, err := o.reader.ReadAsset(p)
		if err != nil {
			return o.stop(item, res, StateFailed, err)
		}
		assetID, err := o.call(ctx, o.uploadTimeout, func(ctx context.Context) (string, error) {
			return o.uploader.UploadAsset(ctx, filepath.Base(p), data)
		})
		if err != nil {
			return o.stop(item, res, StateFailed, fmt.Errorf("upload %s: %w", p, err))
		}
		res.Assets[i].AssetID = assetID
	}

	endID := ""
	if len(res.Assets) == 2 {
		endID = res.Assets[1].AssetID
	}
	if err := item.AttachAssets(res.Assets[0].AssetID, endID); err != nil {
		return o.stop(item, res, StateFailed, err)
	}
	res.State = StateAssetsUploaded
	o.transition(item, res.State)

	updatedID, err := o.call(ctx, o.metadataTimeout, func(ctx context.Context) (string, error) {
		return o.uploader.UpdateEntity(ctx, item.RemoteID, item.Payload())
	})
	if err != nil {
		return o.stop(item, res, StateFailed, fmt.Errorf("update exercise: %w", err))
	}
	if updatedID != item.RemoteID {
		o.logger.Warn("server returned a different id on update", "id", item.ID, "remote_id", item.RemoteID, "returned", updatedID)
	}
	res.State = StateEntityUpdated
	o.transition(item, res.State)

	res.State = StateDone
	o.transition(item, res.State)
	return res, nil
}

// call runs one remote operation under its own deadline.
func (o *Orchestrator) call(ctx context.Context, timeout time.Duration, fn func(context.Context) (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id, err := fn(ctx)
	if err == nil {
		return id, nil
	}
	if errors.Is(err, models.ErrRemoteRejected) {
		return "", err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: %w", models.ErrTimeout, err)
	}
	return "", fmt.Errorf("%w: %w", models.ErrRemoteRejected, err)
}

func (o *Orchestrator) stop(item *models.WorkItem, res Result, state State, err error) (Result, error) {
	res.State = state
	o.transition(item, state, "error", err)
	return res, models.NewItemError(item.ID, err)
}

func (o *Orchestrator) transition(item *models.WorkItem, state State, args ...any) {
	o.logger.Debug("item state", append([]any{"id", item.ID, "state", state}, args...)...)
}
