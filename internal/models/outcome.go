package models

import "time"

// Status is the result of one migration attempt.
type Status string

const (
	StatusOK      Status = "OK"
	StatusSkipped Status = "SKIPPED"
	StatusFailed  Status = "FAILED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusSkipped, StatusFailed:
		return true
	}
	return false
}

// AssetRef pairs an asset source path with the id the server gave it.
// AssetID is empty for assets that were never uploaded.
type AssetRef struct {
	Path    string `yaml:"path"`
	AssetID string `yaml:"asset_id,omitempty"`
}

// Outcome is the durable record of what happened to one work item.
// Outcomes are never modified after creation; a later attempt appends a new one.
type Outcome struct {
	ID        string     `yaml:"id"`
	RemoteID  string     `yaml:"remote_id,omitempty"`
	Status    Status     `yaml:"status"`
	Timestamp time.Time  `yaml:"timestamp"`
	Assets    []AssetRef `yaml:"assets,omitempty"`
	Kind      string     `yaml:"kind,omitempty"`
	Reason    string     `yaml:"reason,omitempty"`
	RunID     string     `yaml:"run_id,omitempty"`
}

// Done reports whether the item needs no further work.
func (o Outcome) Done() bool {
	return o.Status == StatusOK
}

// Succeeded builds an OK outcome.
func Succeeded(id, remoteID string, assets []AssetRef, at time.Time) Outcome {
	return Outcome{
		ID:        id,
		RemoteID:  remoteID,
		Status:    StatusOK,
		Timestamp: at.UTC(),
		Assets:    assets,
	}
}

// FromItemError builds a SKIPPED or FAILED outcome from an item-level error.
func FromItemError(ie *ItemError, remoteID string, assets []AssetRef, at time.Time) Outcome {
	return Outcome{
		ID:        ie.ID,
		RemoteID:  remoteID,
		Status:    ie.Status(),
		Timestamp: at.UTC(),
		Assets:    assets,
		Kind:      ie.Kind,
		Reason:    ie.Reason,
	}
}
