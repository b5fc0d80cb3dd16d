package compare

import (
	"context"

	"github.com/sdejongh/assurance/pkg/logging"
	"github.com/sdejongh/assurance/pkg/models"
	"github.com/sdejongh/assurance/pkg/storage"
)

// ComprehensiveComparator requires both the deep attribute check and the digest check to pass
type ComprehensiveComparator struct {
	attributes AttributeComparator
	digester   *MD5Digester
}

// NewComprehensiveComparator creates a comprehensive comparator
func NewComprehensiveComparator(fs storage.Filesystem, bufferSize int, logger logging.Logger) *ComprehensiveComparator {
	return &ComprehensiveComparator{
		attributes: NewDeepAttributes(fs, logger),
		digester:   NewMD5Digester(fs, bufferSize),
	}
}

// Compare implements Comparator
func (c *ComprehensiveComparator) Compare(ctx context.Context, file1, file2 string, depth models.Depth) (bool, error) {
	if nullPair(file1, file2) {
		return false, nil
	}
	if !c.attributes.CompareAttributes(ctx, file1, file2, depth) {
		return false, nil
	}
	return c.digester.Equal(ctx, file1, file2)
}

// Hash implements Comparator
func (c *ComprehensiveComparator) Hash(ctx context.Context, path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return c.digester.Sum(ctx, path)
}

// Name returns the comparator name
func (c *ComprehensiveComparator) Name() string {
	return "comprehensive"
}
