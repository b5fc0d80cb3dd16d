package compare

import (
	"context"

	"github.com/sdejongh/assurance/pkg/models"
	"github.com/sdejongh/assurance/pkg/storage"
)

// QuickComparator gates the digest behind a cheap attribute check.
// Files whose size or modification time differ are never hashed.
type QuickComparator struct {
	attributes AttributeComparator
	digester   *MD5Digester
}

// NewQuickComparator creates a quick comparator
func NewQuickComparator(fs storage.Filesystem, bufferSize int) *QuickComparator {
	return &QuickComparator{
		attributes: NewQuickAttributes(fs),
		digester:   NewMD5Digester(fs, bufferSize),
	}
}

// Compare implements Comparator
func (c *QuickComparator) Compare(ctx context.Context, file1, file2 string, depth models.Depth) (bool, error) {
	if nullPair(file1, file2) {
		return false, nil
	}
	if !c.attributes.CompareAttributes(ctx, file1, file2, depth) {
		return false, nil
	}
	return c.digester.Equal(ctx, file1, file2)
}

// Hash implements Comparator
func (c *QuickComparator) Hash(ctx context.Context, path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return c.digester.Sum(ctx, path)
}

// Name returns the comparator name
func (c *QuickComparator) Name() string {
	return "quick"
}
