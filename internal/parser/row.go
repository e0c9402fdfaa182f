// Package parser converts raw exercise sheet rows into validated work items.
package parser

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/ptflow-importer/internal/models"
)

// Column positions of row schema version 1 (sheet columns A..J).
const (
	ColID = iota
	ColPriority
	ColName
	ColDescription1
	ColDescription2
	ColCategory
	ColEquipment
	ColBodypart
	ColTarget
	ColSynergist

	// RowColumns is the number of cells a row is padded to.
	RowColumns
)

// SchemaVersion identifies the column layout ParseRow expects.
const SchemaVersion = 1

// PadRow returns a copy of row with at least n cells.
// Sheets export rows without their empty trailing cells, and the column count
// drifts between revisions, so short rows are padded rather than rejected.
func PadRow(row []string, n int) []string {
	size := max(len(row), n)
	padded := make([]string, size)
	copy(padded, row)
	return padded
}

// RowID returns the trimmed external id cell of a raw row.
func RowID(row []string) string {
	return cell(row, ColID)
}

// RowPriority returns the trimmed priority cell of a raw row.
func RowPriority(row []string) string {
	return cell(row, ColPriority)
}

// ParseRow validates a raw row and builds a WorkItem from it.
// Any rejected field makes the whole row invalid; the error wraps
// models.ErrInvalidData and names every offending field.
func ParseRow(row []string) (*models.WorkItem, error) {
	r := PadRow(row, RowColumns)
	for i := range r {
		r[i] = strings.TrimSpace(r[i])
	}

	item := &models.WorkItem{
		ID:             r[ColID],
		Priority:       r[ColPriority],
		Name:           r[ColName],
		Description:    joinDescription(r[ColDescription1], r[ColDescription2]),
		Category:       r[ColCategory],
		Type:           MapType(r[ColEquipment]),
		PrimaryFocus:   MapFocus(r[ColBodypart]),
		SecondaryFocus: MapFocus(r[ColTarget]),
		Synergist:      r[ColSynergist],
	}

	var problems []string
	if item.ID == "" {
		problems = append(problems, "missing id")
	}
	if item.Type != "" && !item.Type.Valid() {
		problems = append(problems, fmt.Sprintf("unknown type %q (from %q)", item.Type, r[ColEquipment]))
	}
	if item.PrimaryFocus != "" && !item.PrimaryFocus.Valid() {
		problems = append(problems, fmt.Sprintf("unknown primary focus %q (from %q)", item.PrimaryFocus, r[ColBodypart]))
	}
	if item.SecondaryFocus != "" && !item.SecondaryFocus.Valid() {
		problems = append(problems, fmt.Sprintf("unknown secondary focus %q (from %q)", item.SecondaryFocus, r[ColTarget]))
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: item %q: %s", models.ErrInvalidData, item.ID, strings.Join(problems, "; "))
	}
	return item, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func joinDescription(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}
