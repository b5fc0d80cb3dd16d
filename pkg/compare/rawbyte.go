package compare

import (
	"context"

	"github.com/sdejongh/assurance/pkg/logging"
	"github.com/sdejongh/assurance/pkg/models"
	"github.com/sdejongh/assurance/pkg/storage"
)

// RawByteComparator is a placeholder for byte-by-byte comparison.
// It never reports equality.
type RawByteComparator struct {
	attributes AttributeComparator
	logger     logging.Logger
}

// NewRawByteComparator creates a raw byte comparator
func NewRawByteComparator(fs storage.Filesystem, logger logging.Logger) *RawByteComparator {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &RawByteComparator{
		attributes: NewQuickAttributes(fs),
		logger:     logger,
	}
}

// Compare implements Comparator
func (c *RawByteComparator) Compare(ctx context.Context, file1, file2 string, depth models.Depth) (bool, error) {
	if nullPair(file1, file2) {
		return false, nil
	}
	if c.attributes.CompareAttributes(ctx, file1, file2, depth) {
		c.logger.Warn(ctx, "raw file comparer is not implemented", logging.Fields{
			"file1": file1,
			"file2": file2,
		})
	}
	return false, nil
}

// Hash implements Comparator
func (c *RawByteComparator) Hash(ctx context.Context, path string) ([]byte, error) {
	return nil, nil
}

// Name returns the comparator name
func (c *RawByteComparator) Name() string {
	return "rawbyte"
}
