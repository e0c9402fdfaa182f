package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/ptflow-importer/internal/metrics"
	"github.com/raphaelgruber/ptflow-importer/internal/models"
)

// StoredAsset is an image held by MemoryClient.
type StoredAsset struct {
	Name string
	Size int
}

// MemoryClient is an in-memory stand-in for the PTFLOW server.
// It backs dry runs and tests. All methods are thread-safe.
type MemoryClient struct {
	mu       sync.Mutex
	entities map[string]models.ExercisePayload
	assets   map[string]StoredAsset
	calls    map[string]int

	// Optional hooks. A non-nil error is returned unchanged and the call has no effect.
	RejectCreate func(payload models.ExercisePayload) error
	RejectUpload func(name string) error
	RejectUpdate func(remoteID string, payload models.ExercisePayload) error

	Metrics *metrics.Collector
}

// NewMemoryClient creates an empty in-memory server.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		entities: make(map[string]models.ExercisePayload),
		assets:   make(map[string]StoredAsset),
		calls:    make(map[string]int),
	}
}

// CreateEntity stores the payload under a new id.
func (m *MemoryClient) CreateEntity(ctx context.Context, payload models.ExercisePayload) (string, error) {
	start := time.Now()
	id, err := m.create(ctx, payload)
	m.record(metrics.OpCreateEntity, start, 0, err)
	return id, err
}

func (m *MemoryClient) create(ctx context.Context, payload models.ExercisePayload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[metrics.OpCreateEntity]++
	if err := ctxError(ctx, metrics.OpCreateEntity); err != nil {
		return "", err
	}
	if m.RejectCreate != nil {
		if err := m.RejectCreate(payload); err != nil {
			return "", err
		}
	}

	id := uuid.NewString()
	m.entities[id] = payload
	return id, nil
}

// UploadAsset stores the image under a new id.
func (m *MemoryClient) UploadAsset(ctx context.Context, name string, data []byte) (string, error) {
	start := time.Now()
	id, err := m.upload(ctx, name, data)
	m.record(metrics.OpUploadAsset, start, int64(len(data)), err)
	return id, err
}

func (m *MemoryClient) upload(ctx context.Context, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[metrics.OpUploadAsset]++
	if err := ctxError(ctx, metrics.OpUploadAsset); err != nil {
		return "", err
	}
	if m.RejectUpload != nil {
		if err := m.RejectUpload(name); err != nil {
			return "", err
		}
	}

	id := uuid.NewString()
	m.assets[id] = StoredAsset{Name: name, Size: len(data)}
	return id, nil
}

// UpdateEntity replaces a stored payload. Unknown ids are rejected with 404.
func (m *MemoryClient) UpdateEntity(ctx context.Context, remoteID string, payload models.ExercisePayload) (string, error) {
	start := time.Now()
	id, err := m.update(ctx, remoteID, payload)
	m.record(metrics.OpUpdateEntity, start, 0, err)
	return id, err
}

func (m *MemoryClient) update(ctx context.Context, remoteID string, payload models.ExercisePayload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[metrics.OpUpdateEntity]++
	if err := ctxError(ctx, metrics.OpUpdateEntity); err != nil {
		return "", err
	}
	if m.RejectUpdate != nil {
		if err := m.RejectUpdate(remoteID, payload); err != nil {
			return "", err
		}
	}
	if _, ok := m.entities[remoteID]; !ok {
		return "", &RemoteError{Op: metrics.OpUpdateEntity, StatusCode: http.StatusNotFound, Body: "exercise not found"}
	}

	m.entities[remoteID] = payload
	return remoteID, nil
}

// Calls returns how often op was invoked, including rejected calls.
func (m *MemoryClient) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Entity returns the stored payload for a server id.
func (m *MemoryClient) Entity(remoteID string) (models.ExercisePayload, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.entities[remoteID]
	return p, ok
}

// Asset returns the stored image for a server id.
func (m *MemoryClient) Asset(id string) (StoredAsset, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	return a, ok
}

// EntityCount returns the number of stored exercises.
func (m *MemoryClient) EntityCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entities)
}

func (m *MemoryClient) record(op string, start time.Time, size int64, err error) {
	if m.Metrics == nil {
		return
	}
	if op == metrics.OpUploadAsset {
		m.Metrics.RecordUpload(time.Since(start), size, err != nil)
		return
	}
	m.Metrics.RecordTiming(op, time.Since(start), err != nil)
}

func ctxError(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return transportError(op, err)
	}
	return nil
}

// Reject is a convenience hook result: a RemoteError with status 400 and the given body.
func Reject(op, body string) error {
	return &RemoteError{Op: op, StatusCode: http.StatusBadRequest, Body: body}
}
