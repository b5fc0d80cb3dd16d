//go:build linux || darwin

package storage

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

func fillPlatformInfo(path string, fi *FileInfo) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return
	}
	fi.UID = int(st.Uid)
	fi.GID = int(st.Gid)
}

func readXattrs(path string) (map[string][]byte, error) {
	attrs := make(map[string][]byte)

	size, err := unix.Llistxattr(path, nil)
	if err != nil {
		if unsupported(err) {
			return attrs, nil
		}
		return nil, fmt.Errorf("failed to list extended attributes: %w", err)
	}
	if size == 0 {
		return attrs, nil
	}

	buf := make([]byte, size)
	size, err = unix.Llistxattr(path, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to list extended attributes: %w", err)
	}

	for _, name := range bytes.Split(buf[:size], []byte{0}) {
		if len(name) == 0 {
			continue
		}
		value, err := getXattr(path, string(name))
		if err != nil {
			return nil, err
		}
		attrs[string(name)] = value
	}
	return attrs, nil
}

func getXattr(path, name string) ([]byte, error) {
	size, err := unix.Lgetxattr(path, name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read extended attribute %s: %w", name, err)
	}
	value := make([]byte, size)
	if size == 0 {
		return value, nil
	}
	size, err = unix.Lgetxattr(path, name, value)
	if err != nil {
		return nil, fmt.Errorf("failed to read extended attribute %s: %w", name, err)
	}
	return value[:size], nil
}

// copyXattrs copies extended attributes from src to dst, best effort
func copyXattrs(src, dst string) {
	attrs, err := readXattrs(src)
	if err != nil {
		return
	}
	for name, value := range attrs {
		_ = unix.Lsetxattr(dst, name, value, 0)
	}
}

func unsupported(err error) bool {
	return errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EOPNOTSUPP)
}
