package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/raphaelgruber/ptflow-importer/internal/client"
	"github.com/raphaelgruber/ptflow-importer/internal/mocks"
	"github.com/raphaelgruber/ptflow-importer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testItem() *models.WorkItem {
	return &models.WorkItem{ID: "0001", Name: "Knebøy", Type: models.TypeWeight, PrimaryFocus: models.FocusLegs}
}

func TestClassifyAssets(t *testing.T) {
	tests := []struct {
		name      string
		paths     []string
		wantStart string
		wantEnd   string
		wantErr   error
	}{
		{"none", nil, "", "", models.ErrNoAssets},
		{"single", []string{"SINGLE-STEP/0001-SINGLE-STEP.png"}, "SINGLE-STEP/0001-SINGLE-STEP.png", "", nil},
		{"two sorted", []string{"0001-a.png", "0001-b.png"}, "0001-a.png", "0001-b.png", nil},
		{"two unsorted", []string{"b.png", "a.png"}, "a.png", "b.png", nil},
		{"three", []string{"a.png", "b.png", "c.png"}, "", "", models.ErrTooManyAssets},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := ClassifyAssets(tt.paths)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestClassifyAssetsDoesNotReorderInput(t *testing.T) {
	paths := []string{"b.png", "a.png"}
	_, _, err := ClassifyAssets(paths)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.png", "a.png"}, paths)
}

func TestProcessCallOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := mocks.NewMockUploader(ctrl)
	store := mocks.NewMockAssetStore(ctrl)

	item := testItem()
	created := item.Payload()
	updated := item.Payload()
	updated.StartImageID = "img-a"
	updated.EndImageID = "img-b"

	gomock.InOrder(
		up.EXPECT().CreateEntity(gomock.Any(), created).Return("ex-1", nil),
		store.EXPECT().ReadAsset("0001-a.png").Return([]byte("a"), nil),
		up.EXPECT().UploadAsset(gomock.Any(), "0001-a.png", []byte("a")).Return("img-a", nil),
		store.EXPECT().ReadAsset("0001-b.png").Return([]byte("b"), nil),
		up.EXPECT().UploadAsset(gomock.Any(), "0001-b.png", []byte("b")).Return("img-b", nil),
		up.EXPECT().UpdateEntity(gomock.Any(), "ex-1", updated).Return("ex-1", nil),
	)

	o := NewOrchestrator(up, store, discardLogger(), 0, 0)
	res, err := o.Process(context.Background(), item, []string{"0001-b.png", "0001-a.png"})
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, []models.AssetRef{
		{Path: "0001-a.png", AssetID: "img-a"},
		{Path: "0001-b.png", AssetID: "img-b"},
	}, res.Assets)
	assert.Equal(t, "ex-1", item.RemoteID)
}

func TestProcessSingleImage(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := mocks.NewMockUploader(ctrl)
	store := mocks.NewMockAssetStore(ctrl)

	up.EXPECT().CreateEntity(gomock.Any(), gomock.Any()).Return("ex-1", nil)
	store.EXPECT().ReadAsset("SINGLE-STEP/0001-SINGLE-STEP.png").Return([]byte("a"), nil)
	up.EXPECT().UploadAsset(gomock.Any(), "0001-SINGLE-STEP.png", gomock.Any()).Return("img-a", nil)
	up.EXPECT().UpdateEntity(gomock.Any(), "ex-1", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, p models.ExercisePayload) (string, error) {
			assert.Equal(t, "img-a", p.StartImageID)
			assert.Empty(t, p.EndImageID)
			return "ex-1", nil
		})

	o := NewOrchestrator(up, store, discardLogger(), 0, 0)
	res, err := o.Process(context.Background(), testItem(), []string{"SINGLE-STEP/0001-SINGLE-STEP.png"})
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
}

func TestProcessSkipsWithoutRemoteCalls(t *testing.T) {
	tests := []struct {
		name       string
		paths      []string
		wantReason string
		wantKind   string
	}{
		{"no assets", nil, "no assets found", models.KindNoAssets},
		{"too many assets", []string{"a.png", "b.png", "c.png"}, "too many assets", models.KindTooManyAssets},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			o := NewOrchestrator(mocks.NewMockUploader(ctrl), mocks.NewMockAssetStore(ctrl), discardLogger(), 0, 0)

			res, err := o.Process(context.Background(), testItem(), tt.paths)
			require.Error(t, err)

			var ie *models.ItemError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, StateSkipped, res.State)
			assert.Equal(t, tt.wantReason, ie.Reason)
			assert.Equal(t, tt.wantKind, ie.Kind)
			assert.Equal(t, models.StatusSkipped, ie.Status())
		})
	}
}

func TestProcessCreateRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := mocks.NewMockUploader(ctrl)
	store := mocks.NewMockAssetStore(ctrl)

	up.EXPECT().CreateEntity(gomock.Any(), gomock.Any()).
		Return("", client.Reject("create_entity", `{"error":"duplicate externalId"}`))

	item := testItem()
	o := NewOrchestrator(up, store, discardLogger(), 0, 0)
	res, err := o.Process(context.Background(), item, []string{"a.png"})

	var ie *models.ItemError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, models.KindRemoteRejected, ie.Kind)
	assert.Equal(t, `{"error":"duplicate externalId"}`, ie.Reason)
	assert.Empty(t, item.RemoteID)
}

func TestProcessUploadRejectedKeepsRemoteID(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := mocks.NewMockUploader(ctrl)
	store := mocks.NewMockAssetStore(ctrl)

	up.EXPECT().CreateEntity(gomock.Any(), gomock.Any()).Return("ex-7", nil)
	store.EXPECT().ReadAsset("a.png").Return([]byte("a"), nil)
	up.EXPECT().UploadAsset(gomock.Any(), "a.png", gomock.Any()).Return("img-a", nil)
	store.EXPECT().ReadAsset("b.png").Return([]byte("b"), nil)
	up.EXPECT().UploadAsset(gomock.Any(), "b.png", gomock.Any()).Return("", client.Reject("upload_asset", "too large"))
	// No UpdateEntity and no delete: the created exercise stays on the server.

	item := testItem()
	o := NewOrchestrator(up, store, discardLogger(), 0, 0)
	res, err := o.Process(context.Background(), item, []string{"a.png", "b.png"})
	require.Error(t, err)

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, "ex-7", item.RemoteID)
	assert.Equal(t, []models.AssetRef{{Path: "a.png", AssetID: "img-a"}, {Path: "b.png"}}, res.Assets)
	assert.Equal(t, "too large", models.NewItemError(item.ID, err).Reason)
}

func TestProcessReadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := mocks.NewMockUploader(ctrl)
	store := mocks.NewMockAssetStore(ctrl)

	up.EXPECT().CreateEntity(gomock.Any(), gomock.Any()).Return("ex-1", nil)
	store.EXPECT().ReadAsset("a.png").Return(nil, errors.New("permission denied"))

	o := NewOrchestrator(up, store, discardLogger(), 0, 0)
	_, err := o.Process(context.Background(), testItem(), []string{"a.png"})

	var ie *models.ItemError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, models.StatusFailed, ie.Status())
	assert.Equal(t, models.KindInternal, ie.Kind)
}

func TestProcessTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := mocks.NewMockUploader(ctrl)
	store := mocks.NewMockAssetStore(ctrl)

	up.EXPECT().CreateEntity(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ models.ExercisePayload) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})

	o := NewOrchestrator(up, store, discardLogger(), 10*time.Millisecond, time.Second)
	res, err := o.Process(context.Background(), testItem(), []string{"a.png"})
	require.Error(t, err)

	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, err, models.ErrTimeout)
	assert.Equal(t, models.KindTimeout, models.KindOf(err))
}

func TestProcessUpdateRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := mocks.NewMockUploader(ctrl)
	store := mocks.NewMockAssetStore(ctrl)

	up.EXPECT().CreateEntity(gomock.Any(), gomock.Any()).Return("ex-1", nil)
	store.EXPECT().ReadAsset("a.png").Return([]byte("a"), nil)
	up.EXPECT().UploadAsset(gomock.Any(), "a.png", gomock.Any()).Return("img-a", nil)
	up.EXPECT().UpdateEntity(gomock.Any(), "ex-1", gomock.Any()).Return("", errors.New("connection reset"))

	o := NewOrchestrator(up, store, discardLogger(), 0, 0)
	res, err := o.Process(context.Background(), testItem(), []string{"a.png"})
	require.Error(t, err)

	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, err, models.ErrRemoteRejected)
	assert.Equal(t, "img-a", res.Assets[0].AssetID)
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateSkipped.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateEntityCreated.Terminal())
}
