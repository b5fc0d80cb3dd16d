package compare

import (
	"github.com/sdejongh/assurance/pkg/logging"
	"github.com/sdejongh/assurance/pkg/models"
	"github.com/sdejongh/assurance/pkg/storage"
)

// Factory builds comparators that share one filesystem, buffer size and logger
type Factory struct {
	fs         storage.Filesystem
	bufferSize int
	logger     logging.Logger
}

// NewFactory creates a comparator factory
func NewFactory(fs storage.Filesystem, bufferSize int, logger logging.Logger) *Factory {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Factory{fs: fs, bufferSize: bufferSize, logger: logger}
}

// New returns the comparator for depth. Anything other than quick is deep.
func (f *Factory) New(depth models.ComparisonDepth) Comparator {
	if depth == models.DepthQuick {
		return NewQuickComparator(f.fs, f.bufferSize)
	}
	return NewComprehensiveComparator(f.fs, f.bufferSize, f.logger)
}

// ForDeepScan is shorthand for New(models.DepthFor(deepScan))
func (f *Factory) ForDeepScan(deepScan bool) Comparator {
	return f.New(models.DepthFor(deepScan))
}
