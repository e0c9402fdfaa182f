// Package metrics provides in-memory runtime statistics for remote calls.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Payload metrics (only for uploads)
	TotalBytes int64
	MaxBytes   int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
	Failures    int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64

	// Payload stats (nil if not applicable)
	TotalBytes *int64
	MaxBytes   *int64
}

// Snapshot represents the statistics of a session at a point in time.
type Snapshot struct {
	ElapsedSeconds float64
	CreateEntity   *OperationSnapshot
	UploadAsset    *OperationSnapshot
	UpdateEntity   *OperationSnapshot
}

// Operation names for the collector.
const (
	OpCreateEntity = "create_entity"
	OpUploadAsset  = "upload_asset"
	OpUpdateEntity = "update_entity"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime: time.Duration(math.MaxInt64),
		}
		c.ops[op] = m
	}
	return m
}

func (m *OperationMetrics) observe(duration time.Duration, failed bool) {
	m.Count++
	m.TotalTime += duration
	if failed {
		m.Failures++
	}

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.getOrCreate(op).observe(duration, failed)
}

// RecordUpload records timing and payload size for an asset upload.
func (c *Collector) RecordUpload(duration time.Duration, size int64, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(OpUploadAsset)
	m.observe(duration, failed)

	m.TotalBytes += size
	if size > m.MaxBytes {
		m.MaxBytes = size
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics, includeBytes bool) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.Count,
		Failures:    m.Failures,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}

	if includeBytes {
		total := m.TotalBytes
		maxBytes := m.MaxBytes
		snap.TotalBytes = &total
		snap.MaxBytes = &maxBytes
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		ElapsedSeconds: time.Since(c.startTime).Seconds(),
		CreateEntity:   snapshotOp(c.ops[OpCreateEntity], false),
		UploadAsset:    snapshotOp(c.ops[OpUploadAsset], true),
		UpdateEntity:   snapshotOp(c.ops[OpUpdateEntity], false),
	}
}

// Operations returns the snapshots that have data, in call order of a work item.
func (s Snapshot) Operations() []NamedSnapshot {
	var out []NamedSnapshot
	for _, op := range []NamedSnapshot{
		{OpCreateEntity, s.CreateEntity},
		{OpUploadAsset, s.UploadAsset},
		{OpUpdateEntity, s.UpdateEntity},
	} {
		if op.Stats != nil {
			out = append(out, op)
		}
	}
	return out
}

// NamedSnapshot pairs an operation name with its stats.
type NamedSnapshot struct {
	Name  string
	Stats *OperationSnapshot
}
