package compare

import (
	"bytes"
	"context"

	"github.com/sdejongh/assurance/pkg/logging"
	"github.com/sdejongh/assurance/pkg/models"
	"github.com/sdejongh/assurance/pkg/storage"
)

// attributeCheck is one named metadata comparison
type attributeCheck struct {
	name  string
	equal bool
}

// readPair stats both files. ok is false when the outcome is already decided:
// equal when both reads failed, unequal when only one did.
func readPair(ctx context.Context, fs storage.Filesystem, file1, file2 string) (info1, info2 *storage.FileInfo, equal, ok bool) {
	info1, err1 := fs.Lstat(ctx, file1)
	info2, err2 := fs.Lstat(ctx, file2)
	switch {
	case err1 != nil && err2 != nil:
		return nil, nil, true, false
	case err1 != nil || err2 != nil:
		return nil, nil, false, false
	}
	return info1, info2, false, true
}

func typeChecks(a, b *storage.FileInfo) []attributeCheck {
	return []attributeCheck{
		{"is_dir", a.IsDir == b.IsDir},
		{"is_other", a.IsOther() == b.IsOther()},
		{"is_regular", a.IsRegular == b.IsRegular},
		{"is_symlink", a.IsSymlink == b.IsSymlink},
		{"size", a.Size == b.Size},
	}
}

// DeepAttributes evaluates every metadata check, including ownership, permissions
// and extended attributes when advanced attributes are requested.
// Access times are never compared because reading a file for its digest updates them.
type DeepAttributes struct {
	fs     storage.Filesystem
	logger logging.Logger
}

// NewDeepAttributes creates a deep attribute comparator
func NewDeepAttributes(fs storage.Filesystem, logger logging.Logger) *DeepAttributes {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &DeepAttributes{fs: fs, logger: logger}
}

// CompareAttributes implements AttributeComparator
func (c *DeepAttributes) CompareAttributes(ctx context.Context, file1, file2 string, depth models.Depth) bool {
	if nullPair(file1, file2) {
		return false
	}
	a, b, decided, ok := readPair(ctx, c.fs, file1, file2)
	if !ok {
		return decided
	}

	checks := typeChecks(a, b)
	if depth.IncludeTimestamps {
		checks = append(checks, attributeCheck{"mod_time", a.ModTime.Equal(b.ModTime)})
	}
	if depth.IncludeAdvancedAttributes {
		checks = append(checks,
			attributeCheck{"permissions", a.Mode.Perm() == b.Mode.Perm()},
			attributeCheck{"owner", a.UID == b.UID},
			attributeCheck{"group", a.GID == b.GID},
			attributeCheck{"xattrs", c.xattrsEqual(ctx, file1, file2)},
		)
	}

	equal := true
	var failed []string
	for _, check := range checks {
		if !check.equal {
			equal = false
			failed = append(failed, check.name)
		}
	}
	if !equal {
		c.logger.Debug(ctx, "attributes differ", logging.Fields{
			"file1":  file1,
			"file2":  file2,
			"checks": failed,
		})
	}
	return equal
}

func (c *DeepAttributes) xattrsEqual(ctx context.Context, file1, file2 string) bool {
	x1, err1 := c.fs.Xattrs(ctx, file1)
	x2, err2 := c.fs.Xattrs(ctx, file2)
	if err1 != nil || err2 != nil {
		return err1 != nil && err2 != nil
	}
	if len(x1) != len(x2) {
		return false
	}
	for name, v1 := range x1 {
		v2, ok := x2[name]
		if !ok || !bytes.Equal(v1, v2) {
			return false
		}
	}
	return true
}

// QuickAttributes compares type, size and modification time, stopping at the first difference
type QuickAttributes struct {
	fs storage.Filesystem
}

// NewQuickAttributes creates a lightweight attribute comparator
func NewQuickAttributes(fs storage.Filesystem) *QuickAttributes {
	return &QuickAttributes{fs: fs}
}

// CompareAttributes implements AttributeComparator
func (c *QuickAttributes) CompareAttributes(ctx context.Context, file1, file2 string, depth models.Depth) bool {
	if nullPair(file1, file2) {
		return false
	}
	a, b, decided, ok := readPair(ctx, c.fs, file1, file2)
	if !ok {
		return decided
	}

	for _, check := range typeChecks(a, b) {
		if !check.equal {
			return false
		}
	}
	if depth.IncludeTimestamps && !a.ModTime.Equal(b.ModTime) {
		return false
	}
	return true
}
