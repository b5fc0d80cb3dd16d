//go:build !linux && !darwin

package storage

func fillPlatformInfo(path string, fi *FileInfo) {}

func readXattrs(path string) (map[string][]byte, error) {
	return map[string][]byte{}, nil
}

func copyXattrs(src, dst string) {}
