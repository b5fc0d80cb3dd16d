package compare

import (
	"context"

	"github.com/sdejongh/assurance/pkg/models"
)

// Comparator decides whether two regular files are equal.
// An empty path stands for a null file: Compare reports false and Hash reports nil,
// both without an error.
type Comparator interface {
	// Compare compares two files using the given attribute depth
	Compare(ctx context.Context, file1, file2 string, depth models.Depth) (bool, error)

	// Hash returns the content digest of a file
	Hash(ctx context.Context, path string) ([]byte, error)

	// Name returns the comparator name
	Name() string
}

// AttributeComparator decides whether two files carry equal metadata
type AttributeComparator interface {
	CompareAttributes(ctx context.Context, file1, file2 string, depth models.Depth) bool
}

// nullPair reports whether either side is a null file
func nullPair(file1, file2 string) bool {
	return file1 == "" || file2 == ""
}
