package storage

import (
	"context"
	"io"
	"os"
	"time"
)

// FileInfo represents metadata about a path. Links are described, never followed.
type FileInfo struct {
	Path      string
	Size      int64
	Mode      os.FileMode
	ModTime   time.Time
	IsDir     bool
	IsSymlink bool
	IsRegular bool
	// UID and GID are -1 where the platform does not expose ownership
	UID int
	GID int
}

// IsOther reports whether the path is neither a file, a directory nor a link
func (f *FileInfo) IsOther() bool {
	return !f.IsDir && !f.IsSymlink && !f.IsRegular
}

// Filesystem is the boundary between the engine and the disk.
// All paths are absolute.
type Filesystem interface {
	// Lstat returns metadata without following links
	Lstat(ctx context.Context, path string) (*FileInfo, error)

	// Exists reports whether path exists; a dangling link exists
	Exists(ctx context.Context, path string) (bool, error)

	// ReadDir returns the sorted names of the entries of a directory
	ReadDir(ctx context.Context, path string) ([]string, error)

	// Open opens a regular file for reading
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Readlink returns the target of a symbolic link
	Readlink(ctx context.Context, path string) (string, error)

	// Xattrs returns the extended attributes of path.
	// Platforms or filesystems without support yield an empty map.
	Xattrs(ctx context.Context, path string) (map[string][]byte, error)

	// Copy copies a file, a link or a whole directory tree to dst, replacing dst
	Copy(ctx context.Context, src, dst string) error

	// Move renames src to dst, copying across devices when needed
	Move(ctx context.Context, src, dst string) error

	// Remove deletes a path and everything below it
	Remove(ctx context.Context, path string) error
}
