// Package mocks provides gomock implementations of the engine capabilities.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	up := mocks.NewMockUploader(ctrl)
//	up.EXPECT().CreateEntity(gomock.Any(), gomock.Any()).Return("ex-1", nil)
package mocks

// Generate mocks for the Uploader and AssetStore interfaces from internal/service.
// MockUploader: CreateEntity, UploadAsset, UpdateEntity
// MockAssetStore: Resolve, ReadAsset
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=service_mock.go github.com/raphaelgruber/ptflow-importer/internal/service Uploader,AssetStore
