package models

import (
	"os"
	"path/filepath"
)

// FileReference is a path plus the filesystem attributes captured when it was last read.
// Links are never followed: a symbolic link to a directory is a link, not a directory.
type FileReference struct {
	Path string `json:"path" yaml:"path"`

	// MappingID is set on exclusions and names the owning mapping
	MappingID string `json:"mapping_id,omitempty" yaml:"mapping_id,omitempty"`

	Exists    bool `json:"exists" yaml:"-"`
	IsDir     bool `json:"is_dir" yaml:"-"`
	IsSymlink bool `json:"is_symlink" yaml:"-"`
}

// NewFileReference creates a reference to path and captures its attributes.
// An empty path yields nil.
func NewFileReference(path string) *FileReference {
	if path == "" {
		return nil
	}
	ref := &FileReference{Path: filepath.Clean(path)}
	ref.Refresh()
	return ref
}

// Refresh re-reads the attributes from the filesystem
func (f *FileReference) Refresh() {
	if f == nil {
		return
	}
	info, err := os.Lstat(f.Path)
	if err != nil {
		f.Exists, f.IsDir, f.IsSymlink = false, false, false
		return
	}
	f.Exists = true
	f.IsSymlink = info.Mode()&os.ModeSymlink != 0
	f.IsDir = info.IsDir()
}

// IsNull reports whether the reference points at nothing usable
func (f *FileReference) IsNull() bool {
	return f == nil || f.Path == ""
}

// PathOrEmpty returns the path, or "" for a null reference
func (f *FileReference) PathOrEmpty() string {
	if f == nil {
		return ""
	}
	return f.Path
}

// Name returns the last element of the path
func (f *FileReference) Name() string {
	if f.IsNull() {
		return ""
	}
	return filepath.Base(f.Path)
}

func (f *FileReference) String() string {
	if f == nil {
		return "<nil>"
	}
	return f.Path
}
