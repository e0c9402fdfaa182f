// Package models defines data structures for the PTFLOW exercise importer.
package models

import "fmt"

// ExerciseType is the closed set of exercise types accepted by the server.
type ExerciseType string

const (
	TypeWeight  ExerciseType = "WEIGHT"
	TypeBand    ExerciseType = "BAND"
	TypeCardio  ExerciseType = "CARDIO"
	TypeStretch ExerciseType = "STRETCH"
	TypeBalance ExerciseType = "BALANCE"
)

// ExerciseTypes lists every valid ExerciseType.
var ExerciseTypes = []ExerciseType{TypeWeight, TypeBand, TypeCardio, TypeStretch, TypeBalance}

// Valid reports whether t is a member of the enumeration.
func (t ExerciseType) Valid() bool {
	for _, v := range ExerciseTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Focus is the closed set of body regions an exercise can target.
type Focus string

const (
	FocusLegs      Focus = "LEGS"
	FocusHips      Focus = "HIPS"
	FocusCore      Focus = "CORE"
	FocusBack      Focus = "BACK"
	FocusChest     Focus = "CHEST"
	FocusShoulders Focus = "SHOULDERS"
	FocusArms      Focus = "ARMS"
	FocusNeck      Focus = "NECK"
	FocusFullBody  Focus = "FULL_BODY"
)

// Focuses lists every valid Focus.
var Focuses = []Focus{
	FocusLegs, FocusHips, FocusCore, FocusBack, FocusChest,
	FocusShoulders, FocusArms, FocusNeck, FocusFullBody,
}

// Valid reports whether f is a member of the enumeration.
func (f Focus) Valid() bool {
	for _, v := range Focuses {
		if f == v {
			return true
		}
	}
	return false
}

// WorkItem is one exercise row awaiting migration.
//
// A WorkItem is built once per row and treated as immutable, except for the
// remote id and the asset references which are assigned exactly once after
// the remote service accepted them.
type WorkItem struct {
	ID             string
	Priority       string
	Name           string
	Description    string
	Category       string
	Type           ExerciseType
	PrimaryFocus   Focus
	SecondaryFocus Focus
	Synergist      string

	// Set once, after successful creation/upload
	RemoteID string
	Start    string
	End      string
}

// SetRemoteID records the id the server assigned to the created exercise.
func (w *WorkItem) SetRemoteID(id string) error {
	if w.RemoteID != "" {
		return fmt.Errorf("%w: remote id of %s", ErrAlreadySet, w.ID)
	}
	w.RemoteID = id
	return nil
}

// AttachAssets records the uploaded start and (optional) end image ids.
func (w *WorkItem) AttachAssets(start, end string) error {
	if w.Start != "" || w.End != "" {
		return fmt.Errorf("%w: assets of %s", ErrAlreadySet, w.ID)
	}
	w.Start = start
	w.End = end
	return nil
}

// Payload builds the server representation of the item.
// Asset references are included only once they have been attached.
func (w *WorkItem) Payload() ExercisePayload {
	return ExercisePayload{
		ExternalID:     w.ID,
		Name:           w.Name,
		Description:    w.Description,
		Category:       w.Category,
		Type:           w.Type,
		PrimaryFocus:   w.PrimaryFocus,
		SecondaryFocus: w.SecondaryFocus,
		Synergist:      w.Synergist,
		StartImageID:   w.Start,
		EndImageID:     w.End,
	}
}

func (w *WorkItem) String() string {
	return fmt.Sprintf("WorkItem{id=%s, name=%s, type=%s, focus=%s/%s}",
		w.ID, w.Name, w.Type, w.PrimaryFocus, w.SecondaryFocus)
}

// ExercisePayload is the JSON body of the create and update calls.
type ExercisePayload struct {
	ExternalID     string       `json:"externalId"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	Category       string       `json:"category,omitempty"`
	Type           ExerciseType `json:"type,omitempty"`
	PrimaryFocus   Focus        `json:"primaryFocus,omitempty"`
	SecondaryFocus Focus        `json:"secondaryFocus,omitempty"`
	Synergist      string       `json:"synergist,omitempty"`
	StartImageID   string       `json:"startImageId,omitempty"`
	EndImageID     string       `json:"endImageId,omitempty"`
}
