// Package source provides the raw rows of the exercise sheet.
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-billy/v5"
)

// DefaultSkipRows is the number of heading rows above the data in the sheet export.
const DefaultSkipRows = 4

// Provider returns the ordered raw rows of a source list.
type Provider interface {
	Rows(ctx context.Context) ([][]string, error)
}

// CSVFile reads rows from a CSV export of the exercise sheet.
type CSVFile struct {
	FS       billy.Filesystem
	Path     string
	SkipRows int
	Comma    rune
}

// NewCSVFile creates a provider for the export at path with default settings.
func NewCSVFile(fs billy.Filesystem, path string) *CSVFile {
	return &CSVFile{FS: fs, Path: path, SkipRows: DefaultSkipRows, Comma: ','}
}

// Rows reads the whole file. Heading rows are skipped, blank rows dropped.
// Rows may have any number of cells.
func (c *CSVFile) Rows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := c.FS.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	if c.Comma != 0 {
		r.Comma = c.Comma
	}

	var rows [][]string
	for line := 0; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse source %s: %w", c.Path, err)
		}
		if line == 0 && len(record) > 0 {
			record[0] = strings.TrimPrefix(record[0], "\ufeff")
		}
		if line < c.SkipRows || blank(record) {
			continue
		}
		rows = append(rows, record)
	}

	return rows, nil
}

// Static is a fixed in-memory source.
type Static [][]string

// Rows returns the rows as given.
func (s Static) Rows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
