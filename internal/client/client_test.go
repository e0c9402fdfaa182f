package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/ptflow-importer/internal/metrics"
	"github.com/raphaelgruber/ptflow-importer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type recorded struct {
	method      string
	path        string
	cookie      string
	contentType string
	body        []byte
}

type fakeServer struct {
	mu       sync.Mutex
	requests []recorded
	status   int
	response string
	delay    time.Duration
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec := recorded{
		method:      r.Method,
		path:        r.URL.EscapedPath(),
		contentType: r.Header.Get("Content-Type"),
		body:        body,
	}
	if c, err := r.Cookie("SESSION"); err == nil {
		rec.cookie = c.Value
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	status, response, delay := f.status, f.response, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, response)
}

func (f *fakeServer) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, f *fakeServer, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	opts.Server = srv.URL
	if opts.Session == "" {
		opts.Session = "tok"
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"valid", Options{Server: "https://ptflow.example.com", Session: "s"}, false},
		{"trailing slash", Options{Server: "http://localhost:8080/", Session: "s"}, false},
		{"missing server", Options{Session: "s"}, true},
		{"missing session", Options{Server: "https://x"}, true},
		{"bad scheme", Options{Server: "ftp://x", Session: "s"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultSessionCookie, c.cookie)
			assert.Equal(t, DefaultMetadataTimeout, c.metadataTimeout)
			assert.Equal(t, DefaultUploadTimeout, c.uploadTimeout)
		})
	}
}

func TestCreateEntity(t *testing.T) {
	f := &fakeServer{response: `{"id":"ex-1"}`}
	c := newTestClient(t, f, Options{})

	id, err := c.CreateEntity(context.Background(), models.ExercisePayload{ExternalID: "0001", Name: "Knebøy", Type: models.TypeWeight})
	require.NoError(t, err)
	assert.Equal(t, "ex-1", id)

	req := f.last(t)
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/api/exercises", req.path)
	assert.Equal(t, "tok", req.cookie)
	assert.Equal(t, "application/json", req.contentType)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(req.body, &sent))
	assert.Equal(t, "0001", sent["externalId"])
	assert.Equal(t, "WEIGHT", sent["type"])
	assert.NotContains(t, sent, "startImageId")
}

func TestUpdateEntity(t *testing.T) {
	f := &fakeServer{response: `{"id":"ex 1"}`}
	c := newTestClient(t, f, Options{})

	id, err := c.UpdateEntity(context.Background(), "ex 1", models.ExercisePayload{
		ExternalID: "0001", Name: "Knebøy", StartImageID: "img-a", EndImageID: "img-b",
	})
	require.NoError(t, err)
	assert.Equal(t, "ex 1", id)

	req := f.last(t)
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/api/exercises/ex%201", req.path)
	assert.Contains(t, string(req.body), `"startImageId":"img-a"`)
	assert.Contains(t, string(req.body), `"endImageId":"img-b"`)
}

func TestUploadAsset(t *testing.T) {
	f := &fakeServer{response: `{"id":"img-1"}`}
	c := newTestClient(t, f, Options{})

	id, err := c.UploadAsset(context.Background(), "0001-a.png", pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "img-1", id)

	req := f.last(t)
	assert.Equal(t, "/api/images", req.path)
	assert.Contains(t, req.contentType, "multipart/form-data; boundary=")
	assert.Contains(t, string(req.body), `name="file"; filename="0001-a.png"`)
	assert.Contains(t, string(req.body), "Content-Type: image/png")
}

func TestRemoteErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		response   string
		wantReason string
		wantStatus int
	}{
		{"bad request with body", http.StatusBadRequest, `{"error":"name taken"}`, `{"error":"name taken"}`, 400},
		{"unauthorized without body", http.StatusUnauthorized, "", "401 Unauthorized", 401},
		{"server error", http.StatusInternalServerError, "boom", "boom", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeServer{status: tt.status, response: tt.response}
			c := newTestClient(t, f, Options{})

			_, err := c.CreateEntity(context.Background(), models.ExercisePayload{ExternalID: "1"})
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrRemoteRejected)
			assert.NotErrorIs(t, err, models.ErrTimeout)

			var re *RemoteError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tt.wantStatus, re.StatusCode)
			assert.Equal(t, metrics.OpCreateEntity, re.Op)
			assert.Equal(t, tt.wantReason, re.Reason())

			ie := models.NewItemError("1", err)
			assert.Equal(t, tt.wantReason, ie.Reason)
			assert.Equal(t, models.StatusFailed, ie.Status())
		})
	}
}

func TestMalformedSuccessResponse(t *testing.T) {
	for _, body := range []string{"not json", `{"name":"x"}`} {
		f := &fakeServer{response: body}
		c := newTestClient(t, f, Options{})

		_, err := c.CreateEntity(context.Background(), models.ExercisePayload{ExternalID: "1"})
		assert.ErrorIs(t, err, models.ErrRemoteRejected, "body %q", body)
	}
}

func TestTimeout(t *testing.T) {
	f := &fakeServer{response: `{"id":"late"}`, delay: time.Second}
	col := metrics.NewCollector()
	c := newTestClient(t, f, Options{MetadataTimeout: 20 * time.Millisecond, Metrics: col})

	_, err := c.CreateEntity(context.Background(), models.ExercisePayload{ExternalID: "1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTimeout)
	assert.ErrorIs(t, err, models.ErrRemoteRejected)
	assert.Equal(t, models.KindTimeout, models.KindOf(err))

	snap := col.Snapshot()
	require.NotNil(t, snap.CreateEntity)
	assert.Equal(t, int64(1), snap.CreateEntity.Failures)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Options{Server: url, Session: "tok"})
	require.NoError(t, err)

	_, err = c.UploadAsset(context.Background(), "a.png", pngHeader)
	assert.ErrorIs(t, err, models.ErrRemoteRejected)
	assert.Equal(t, models.KindRemoteRejected, models.KindOf(err))
}

func TestClientRecordsMetrics(t *testing.T) {
	f := &fakeServer{response: `{"id":"x"}`}
	col := metrics.NewCollector()
	c := newTestClient(t, f, Options{Metrics: col})

	ctx := context.Background()
	_, err := c.CreateEntity(ctx, models.ExercisePayload{ExternalID: "1"})
	require.NoError(t, err)
	_, err = c.UploadAsset(ctx, "a.png", pngHeader)
	require.NoError(t, err)
	_, err = c.UpdateEntity(ctx, "x", models.ExercisePayload{ExternalID: "1"})
	require.NoError(t, err)

	snap := col.Snapshot()
	require.NotNil(t, snap.UploadAsset)
	assert.Equal(t, int64(len(pngHeader)), *snap.UploadAsset.TotalBytes)
	assert.Len(t, snap.Operations(), 3)
}
