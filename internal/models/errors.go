package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the importer.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidData indicates a row with a missing id or an unrecognized
	// categorical value. Whether it aborts the session depends on the policy.
	ErrInvalidData = errors.New("invalid data")

	// ErrNoAssets indicates that no image was found for an item.
	ErrNoAssets = errors.New("no assets found")

	// ErrTooManyAssets indicates more than two images were found for an item.
	ErrTooManyAssets = errors.New("too many assets")

	// ErrRemoteRejected indicates a non-success answer (or no answer) from the server.
	ErrRemoteRejected = errors.New("remote rejected")

	// ErrTimeout indicates a remote call exceeded its deadline.
	// It is a RemoteRejected error.
	ErrTimeout = fmt.Errorf("%w: timeout", ErrRemoteRejected)

	// ErrCorruptLog indicates the outcome log could not be parsed.
	// History is never dropped silently; the log needs manual inspection.
	ErrCorruptLog = errors.New("corrupt outcome log")

	// ErrAlreadySet indicates a set-once field was assigned twice.
	ErrAlreadySet = errors.New("already set")
)

// Error kind names recorded in outcomes.
const (
	KindInvalidData    = "InvalidData"
	KindNoAssets       = "NoAssets"
	KindTooManyAssets  = "TooManyAssets"
	KindRemoteRejected = "RemoteRejected"
	KindTimeout        = "Timeout"
	KindCorruptLog     = "CorruptLog"
	KindInternal       = "Internal"
)

// KindOf returns the kind name for err.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrRemoteRejected):
		return KindRemoteRejected
	case errors.Is(err, ErrInvalidData):
		return KindInvalidData
	case errors.Is(err, ErrNoAssets):
		return KindNoAssets
	case errors.Is(err, ErrTooManyAssets):
		return KindTooManyAssets
	case errors.Is(err, ErrCorruptLog):
		return KindCorruptLog
	default:
		return KindInternal
	}
}

// reasoner is implemented by errors that carry a message meant for operators,
// such as the body of a rejected HTTP response.
type reasoner interface {
	Reason() string
}

// ItemError is a recoverable, item-level failure. The session runner turns it
// into a SKIPPED or FAILED outcome and moves on to the next item.
type ItemError struct {
	ID     string
	Kind   string
	Reason string
	Err    error
}

// NewItemError classifies err for the item with the given id.
func NewItemError(id string, err error) *ItemError {
	reason := err.Error()
	var r reasoner
	if errors.As(err, &r) && r.Reason() != "" {
		reason = r.Reason()
	}
	return &ItemError{
		ID:     id,
		Kind:   KindOf(err),
		Reason: reason,
		Err:    err,
	}
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %s: %s: %s", e.ID, e.Kind, e.Reason)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Status maps the kind onto the outcome status. Data and asset conformance
// problems are skips; everything that went wrong talking to the server is a failure.
func (e *ItemError) Status() Status {
	switch e.Kind {
	case KindInvalidData, KindNoAssets, KindTooManyAssets:
		return StatusSkipped
	default:
		return StatusFailed
	}
}
