package models

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// maxResolutionErrorLen bounds the stored resolution error message
const maxResolutionErrorLen = 255

// Side identifies one half of a comparison pair
type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
)

// ComparisonResult is one detected divergence between source and target.
// The tree comparator creates it; only merge engines change it afterwards.
type ComparisonResult struct {
	ID              string         `json:"id"`
	ScanID          string         `json:"scan_id"`
	Source          *FileReference `json:"source"`
	Target          *FileReference `json:"target"`
	Reason          Reason         `json:"reason"`
	Resolution      Resolution     `json:"resolution"`
	ResolutionError string         `json:"resolution_error,omitempty"`
}

// ResultKey identifies a result by its path pair
type ResultKey struct {
	Source string
	Target string
}

// NewComparisonResult creates an unresolved result for the given paths.
// Empty paths produce null references.
func NewComparisonResult(source, target string, reason Reason) *ComparisonResult {
	return &ComparisonResult{
		ID:         uuid.New().String(),
		Source:     NewFileReference(source),
		Target:     NewFileReference(target),
		Reason:     reason,
		Resolution: ResolutionUnresolved,
	}
}

// Key returns the (source path, target path) pair
func (r *ComparisonResult) Key() ResultKey {
	return ResultKey{Source: r.Source.PathOrEmpty(), Target: r.Target.PathOrEmpty()}
}

// Resolve sets a successful resolution and clears any previous error
func (r *ComparisonResult) Resolve(resolution Resolution) {
	r.Resolution = resolution
	r.ResolutionError = ""
}

// Fail records err as a processing error
func (r *ComparisonResult) Fail(err error) {
	r.Resolution = ResolutionProcessingError
	if err == nil {
		r.SetResolutionError("")
		return
	}
	r.SetResolutionError(err.Error())
}

// Reset returns the result to the unresolved state
func (r *ComparisonResult) Reset() {
	r.Resolve(ResolutionUnresolved)
}

// SetResolutionError stores msg, truncated to at most 255 bytes on a rune boundary
func (r *ComparisonResult) SetResolutionError(msg string) {
	if len(msg) > maxResolutionErrorLen {
		msg = msg[:maxResolutionErrorLen]
		for len(msg) > 0 && !utf8.ValidString(msg) {
			msg = msg[:len(msg)-1]
		}
	}
	r.ResolutionError = msg
}

// Ref returns the reference for side
func (r *ComparisonResult) Ref(side Side) *FileReference {
	if side == SideTarget {
		return r.Target
	}
	return r.Source
}

// DeletedItemLocation returns where the item on side is kept once deleted.
// The absolute path of the item is mirrored under scanDir.
func (r *ComparisonResult) DeletedItemLocation(scanDir string, side Side) string {
	ref := r.Ref(side)
	if scanDir == "" || ref.IsNull() {
		return ""
	}
	return filepath.Join(scanDir, mirrorPath(ref.Path))
}

// mirrorPath turns an absolute path into one that can be nested under another directory
func mirrorPath(path string) string {
	path = filepath.ToSlash(path)
	if len(path) > 1 && path[1] == ':' {
		path = path[:1] + "~" + path[2:]
	}
	path = strings.TrimLeft(path, "/")
	return filepath.FromSlash(path)
}
