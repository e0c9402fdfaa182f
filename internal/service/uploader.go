// Package service provides the migration engine: the per-item upload
// orchestrator, the session runner and the reconciler.
package service

import (
	"context"

	"github.com/raphaelgruber/ptflow-importer/internal/models"
)

// Uploader is the capability to write exercises and images to the remote service.
// Every method returns a server-assigned id on success. Failures wrap
// models.ErrRemoteRejected (models.ErrTimeout for deadlines).
type Uploader interface {
	CreateEntity(ctx context.Context, payload models.ExercisePayload) (string, error)
	UploadAsset(ctx context.Context, name string, data []byte) (string, error)
	UpdateEntity(ctx context.Context, remoteID string, payload models.ExercisePayload) (string, error)
}

// AssetResolver finds the asset paths of an item.
type AssetResolver interface {
	Resolve(id string) ([]string, error)
}

// AssetReader reads one asset.
type AssetReader interface {
	ReadAsset(path string) ([]byte, error)
}

// AssetStore resolves and reads assets.
type AssetStore interface {
	AssetResolver
	AssetReader
}
