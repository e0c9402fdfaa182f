// Package oplog stores migration outcomes in an append-only YAML file.
//
// Every append writes one self-contained YAML document holding a
// single-element list of outcomes, closed by a document end line:
//
//	---
//	- id: "0003"
//	  remote_id: 6f1c...
//	  status: OK
//	  timestamp: 2024-03-01T12:00:00.123456789Z
//	...
//
// The file is never rewritten. A document without its end line is the trace
// of an interrupted write, wherever the write was cut: the reader ignores it,
// and the next Append seals it with a marker comment before writing, so it
// stays ignored once newer documents follow it.
//
// The log is the only record of which items are done. It is read in full on
// every run and the most recent outcome for an id wins.
//
// The store does no locking. Running two importers against the same
// bookkeeping id at the same time is not supported.
package oplog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/ptflow-importer/internal/models"
	"gopkg.in/yaml.v3"
)

// Extension is the file extension of outcome logs.
const Extension = "yaml"

const (
	documentStart = "---"
	documentEnd   = "..."
	sealMarker    = "# incomplete entry above, ignored"
)

// History is the parsed content of an outcome log.
type History struct {
	// Entries in append order.
	Entries []models.Outcome

	// TornTail is set when the last document has no end line and was ignored.
	TornTail bool

	// Sealed counts earlier unterminated documents that were ignored.
	Sealed int
}

// Latest folds the history into the most recent outcome per id.
func (h *History) Latest() map[string]models.Outcome {
	return Fold(h.Entries)
}

// Path returns the log location for a bookkeeping id below root.
func Path(root, bookkeepingID string) (string, error) {
	id := strings.TrimSpace(bookkeepingID)
	if id == "" {
		return "", errors.New("bookkeeping id is required")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid bookkeeping id %q: must not contain path separators", bookkeepingID)
	}
	return filepath.Join(root, id+"-log."+Extension), nil
}

// Load reads the log at path and folds it into a map keyed by item id.
// A missing file is an empty log, not an error.
func Load(path string) (map[string]models.Outcome, error) {
	h, err := Read(path)
	if err != nil {
		return nil, err
	}
	return h.Latest(), nil
}

// Fold reduces an ordered outcome sequence to the latest outcome per id.
func Fold(entries []models.Outcome) map[string]models.Outcome {
	latest := make(map[string]models.Outcome, len(entries))
	for _, o := range entries {
		latest[o.ID] = o
	}
	return latest
}

// Read parses the whole log at path. A missing file yields an empty history.
// Malformed content in a terminated document is reported as
// models.ErrCorruptLog; unterminated documents are skipped.
func Read(path string) (*History, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &History{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read outcome log: %w", err)
	}
	return parse(data, path)
}

// document is one unit of the log, without its "---" and "..." lines.
type document struct {
	body    []byte
	started bool // opened with a "---" line
	ended   bool // end line written in full
	sealed  bool
}

func parse(data []byte, path string) (*History, error) {
	h := &History{}
	docs := split(data)

	for i, doc := range docs {
		blank := len(bytes.TrimSpace(doc.body)) == 0
		if !doc.ended {
			if blank && !doc.started {
				continue
			}
			if i == len(docs)-1 && !doc.sealed {
				h.TornTail = true
			} else {
				h.Sealed++
			}
			continue
		}
		if blank {
			continue
		}

		unit, err := decodeDocument(doc.body)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: document %d: %v", models.ErrCorruptLog, path, i+1, err)
		}
		h.Entries = append(h.Entries, unit...)
	}

	return h, nil
}

// split cuts the log into documents. A document opens at a "---" line, or at
// the first content after the previous document's end line.
func split(data []byte) []document {
	var docs []document
	var cur *document

	for _, line := range bytes.SplitAfter(data, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		trimmed := strings.TrimRight(string(line), "\r\n")
		if trimmed == documentStart {
			docs = append(docs, document{started: true})
			cur = &docs[len(docs)-1]
			continue
		}
		if cur == nil {
			docs = append(docs, document{})
			cur = &docs[len(docs)-1]
		}
		if trimmed == documentEnd && line[len(line)-1] == '\n' {
			cur.ended = true
			cur = nil
			continue
		}
		if strings.HasSuffix(trimmed, sealMarker) {
			cur.sealed = true
		}
		cur.body = append(cur.body, line...)
	}

	return docs
}

func decodeDocument(body []byte) ([]models.Outcome, error) {
	var unit []models.Outcome
	dec := yaml.NewDecoder(bytes.NewReader(body))
	dec.KnownFields(true)
	if err := dec.Decode(&unit); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	for i, o := range unit {
		if o.ID == "" {
			return nil, fmt.Errorf("entry %d: missing id", i)
		}
		if !o.Status.Valid() {
			return nil, fmt.Errorf("entry %d: unknown status %q", i, o.Status)
		}
	}
	return unit, nil
}

// Append writes outcome as a new document at the end of the log, creating
// the file and its directory when needed. Existing bytes are never touched.
func Append(path string, outcome models.Outcome) error {
	unit, err := encode(outcome)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open outcome log: %w", err)
	}

	seal, err := sealFor(f)
	if err != nil {
		f.Close()
		return err
	}
	unit = append(seal, unit...)

	// One write per unit, so a reader never sees half of it interleaved
	// with another unit.
	if _, err := f.Write(unit); err != nil {
		f.Close()
		return fmt.Errorf("append outcome %s: %w", outcome.ID, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync outcome log: %w", err)
	}
	return f.Close()
}

// sealFor returns the bytes that close an unterminated last document of f
// before a new one is appended. It is empty when the file is empty or ends
// with a complete end line.
func sealFor(f *os.File) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat outcome log: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return nil, nil
	}

	tail := make([]byte, min(size, int64(len(documentEnd)+2)))
	if _, err := f.ReadAt(tail, size-int64(len(tail))); err != nil {
		return nil, fmt.Errorf("read outcome log tail: %w", err)
	}
	if endsDocument(tail, size) {
		return nil, nil
	}

	if tail[len(tail)-1] != '\n' {
		// Finish the cut line with the marker. A bare newline could turn a
		// cut "..." into a valid end line.
		return []byte(" " + sealMarker + "\n"), nil
	}
	return []byte(sealMarker + "\n"), nil
}

// endsDocument reports whether tail, the last bytes of a file of the given
// size, is a complete end line.
func endsDocument(tail []byte, size int64) bool {
	line := documentEnd + "\n"
	if !bytes.HasSuffix(tail, []byte(line)) {
		return false
	}
	return size == int64(len(line)) || tail[len(tail)-len(line)-1] == '\n'
}

func encode(outcome models.Outcome) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(documentStart + "\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode([]models.Outcome{outcome}); err != nil {
		return nil, fmt.Errorf("encode outcome %s: %w", outcome.ID, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode outcome %s: %w", outcome.ID, err)
	}
	buf.WriteString(documentEnd + "\n")
	return buf.Bytes(), nil
}
