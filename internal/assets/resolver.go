// Package assets locates the images belonging to an exercise.
//
// Images follow a directory convention below the image root:
//
//	<root>/<id>*.png                          two-step exercises (start, end)
//	<root>/SINGLE-STEP/<id>*SINGLE-STEP.png   single-image exercises
//
// The character after the id must not be a digit, so id 1 does not claim
// 10-a.png. An id with images in both places is a conformance error.
package assets

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// SingleStepDir is the subdirectory holding single-image exercises.
const SingleStepDir = "SINGLE-STEP"

var (
	// ErrAmbiguousAssets indicates images for one id in both layouts.
	ErrAmbiguousAssets = errors.New("ambiguous assets")

	// ErrInvalidID indicates an id that cannot be used in a file pattern.
	ErrInvalidID = errors.New("invalid asset id")
)

// Resolver finds and reads assets on a billy filesystem rooted at the image directory.
type Resolver struct {
	FS billy.Filesystem
}

// NewResolver creates a resolver over fs.
func NewResolver(fs billy.Filesystem) *Resolver {
	return &Resolver{FS: fs}
}

// Resolve returns the asset paths for id, relative to the filesystem root.
// It returns an empty list when nothing matches; ordering and counting are
// left to the caller.
func (r *Resolver) Resolve(id string) ([]string, error) {
	if id == "" || strings.ContainsAny(id, `*?[]\/`) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	steps, err := util.Glob(r.FS, id+"*.png")
	if err != nil {
		return nil, fmt.Errorf("glob images for %s: %w", id, err)
	}
	single, err := util.Glob(r.FS, path.Join(SingleStepDir, id+"*"+SingleStepDir+".png"))
	if err != nil {
		return nil, fmt.Errorf("glob single-step image for %s: %w", id, err)
	}
	steps, single = ownedBy(id, steps), ownedBy(id, single)

	switch {
	case len(steps) > 0 && len(single) > 0:
		return nil, fmt.Errorf("%w: %s has %d step images and %d single-step images",
			ErrAmbiguousAssets, id, len(steps), len(single))
	case len(steps) > 0:
		return steps, nil
	default:
		return single, nil
	}
}

// ownedBy drops matches where the id continues with another digit.
func ownedBy(id string, matches []string) []string {
	kept := matches[:0]
	for _, m := range matches {
		rest := strings.TrimPrefix(path.Base(m), id)
		if rest != "" && rest[0] >= '0' && rest[0] <= '9' {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

// ReadAsset returns the content of the asset at p.
func (r *Resolver) ReadAsset(p string) ([]byte, error) {
	data, err := util.ReadFile(r.FS, p)
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", p, err)
	}
	return data, nil
}
