package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sdejongh/assurance/pkg/ratelimit"
)

const defaultBufferSize = 64 * 1024

// Local is the filesystem backed by the operating system
type Local struct {
	limiter    *ratelimit.Limiter
	bufferSize int
	bufferPool *sync.Pool
}

// Option configures a Local filesystem
type Option func(*Local)

// WithLimiter throttles file reads through l
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(fs *Local) {
		fs.limiter = l
	}
}

// WithBufferSize sets the copy buffer size
func WithBufferSize(size int) Option {
	return func(fs *Local) {
		if size >= 4096 {
			fs.bufferSize = size
		}
	}
}

// NewLocal creates a local filesystem
func NewLocal(opts ...Option) *Local {
	l := &Local{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt(l)
	}
	size := l.bufferSize
	l.bufferPool = &sync.Pool{
		New: func() interface{} {
			buf := make([]byte, size)
			return &buf
		},
	}
	return l
}

// Lstat returns file metadata without following links
func (l *Local) Lstat(ctx context.Context, path string) (*FileInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	fi := &FileInfo{
		Path:      path,
		Size:      info.Size(),
		Mode:      info.Mode(),
		ModTime:   info.ModTime(),
		IsDir:     info.IsDir(),
		IsSymlink: info.Mode()&os.ModeSymlink != 0,
		IsRegular: info.Mode().IsRegular(),
		UID:       -1,
		GID:       -1,
	}
	fillPlatformInfo(path, fi)
	return fi, nil
}

// Exists checks if a path exists without following links
func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check existence: %w", err)
}

// ReadDir lists the entry names of a directory
func (l *Local) ReadDir(ctx context.Context, path string) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Open opens a file for reading, throttled by the limiter if any
func (l *Local) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return l.limiter.Wrap(ctx, file), nil
}

// Readlink returns the link target
func (l *Local) Readlink(ctx context.Context, path string) (string, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return "", fmt.Errorf("failed to read link %s: %w", path, err)
	}
	return target, nil
}

// Xattrs returns the extended attributes of path
func (l *Local) Xattrs(ctx context.Context, path string) (map[string][]byte, error) {
	return readXattrs(path)
}

// Copy copies src to dst, replacing whatever dst holds
func (l *Local) Copy(ctx context.Context, src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	isLink := info.Mode()&os.ModeSymlink != 0

	// Only a file can be overwritten in place
	if existing, err := os.Lstat(dst); err == nil {
		if isLink || existing.IsDir() != info.IsDir() || existing.Mode()&os.ModeSymlink != 0 {
			if err := os.RemoveAll(dst); err != nil {
				return fmt.Errorf("failed to replace %s: %w", dst, err)
			}
		}
	}

	switch {
	case isLink:
		return l.copyLink(src, dst)
	case info.IsDir():
		return l.copyDir(ctx, src, dst, info)
	default:
		return l.copyFile(ctx, src, dst, info)
	}
}

func (l *Local) copyLink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return fmt.Errorf("failed to read link: %w", err)
	}
	if err := os.Symlink(target, dst); err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

func (l *Local) copyDir(ctx context.Context, src, dst string, info os.FileInfo) error {
	if err := os.MkdirAll(dst, info.Mode().Perm()|0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	names, err := l.ReadDir(ctx, src)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := l.Copy(ctx, filepath.Join(src, name), filepath.Join(dst, name)); err != nil {
			return err
		}
	}

	copyXattrs(src, dst)
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("failed to set modification time: %w", err)
	}
	return nil
}

func (l *Local) copyFile(ctx context.Context, src, dst string, info os.FileInfo) error {
	in, err := l.Open(ctx, src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()|0200)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	bufPtr := l.bufferPool.Get().(*[]byte)
	written, err := io.CopyBuffer(out, in, *bufPtr)
	l.bufferPool.Put(bufPtr)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if written != info.Size() {
		return fmt.Errorf("incomplete write: expected %d bytes, wrote %d", info.Size(), written)
	}
	copyXattrs(src, dst)

	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("failed to set modification time: %w", err)
	}
	return nil
}

// Move renames src to dst, falling back to copy and remove
func (l *Local) Move(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("failed to clear destination: %w", err)
	}

	renameErr := os.Rename(src, dst)
	if renameErr == nil {
		return nil
	}
	if err := l.Copy(ctx, src, dst); err != nil {
		return fmt.Errorf("failed to move %s: %w", src, renameErr)
	}
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("failed to remove %s after copy: %w", src, err)
	}
	return nil
}

// Remove deletes a file or directory
func (l *Local) Remove(ctx context.Context, path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	return nil
}
