package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/sdejongh/assurance/pkg/compare"
	"github.com/sdejongh/assurance/pkg/logging"
	"github.com/sdejongh/assurance/pkg/models"
	"github.com/sdejongh/assurance/pkg/output"
	"github.com/sdejongh/assurance/pkg/storage"
	"github.com/sdejongh/assurance/pkg/workerpool"
)

// ScannerConfig holds the scan-wide settings
type ScannerConfig struct {
	Options  models.ScanOptions
	DeepScan bool
}

// Scanner runs whole scans: every mapping of a definition, or one ad hoc pair
type Scanner struct {
	tree    *TreeComparator
	pool    *workerpool.Pool
	logger  logging.Logger
	options models.ScanOptions
}

// NewScanner creates a scanner whose comparator is chosen by config.DeepScan
func NewScanner(
	fsys storage.Filesystem,
	comparators *compare.Factory,
	pool *workerpool.Pool,
	sink output.Sink,
	logger logging.Logger,
	config ScannerConfig,
) *Scanner {
	logger = logging.OrNull(logger)
	return &Scanner{
		tree:    NewTreeComparator(fsys, comparators.ForDeepScan(config.DeepScan), pool, sink, logger),
		pool:    pool,
		logger:  logger,
		options: config.Options,
	}
}

// Run scans every mapping of definition. An invalid definition fails before
// anything is compared. Mapping roots that cannot be enumerated are reported
// in the returned error while the other mappings are still scanned.
func (s *Scanner) Run(ctx context.Context, definition *models.ScanDefinition) (*models.Scan, error) {
	if err := definition.Validate(); err != nil {
		return nil, err
	}

	scan := models.NewScan(definition)
	s.logger.Info(ctx, "Scan started", logging.Fields{
		"scan_id":  scan.ID,
		"name":     scan.Name(),
		"mappings": len(definition.Mappings),
	})

	var errs []error
	for _, mapping := range definition.Mappings {
		err := s.tree.Compare(ctx, mapping.Source.Path, mapping.Target.Path, scan, s.options, mapping.ExclusionPaths())
		if err != nil {
			errs = append(errs, fmt.Errorf("mapping %s: %w", mapping, err))
		}
	}

	return s.finish(ctx, scan, errors.Join(errs...))
}

// RunPair scans a single source and target without a definition
func (s *Scanner) RunPair(ctx context.Context, source, target string) (*models.Scan, error) {
	scan := models.NewScan(nil)
	s.logger.Info(ctx, "Scan started", logging.Fields{
		"scan_id": scan.ID,
		"source":  source,
		"target":  target,
	})

	err := s.tree.Compare(ctx, source, target, scan, s.options, nil)
	return s.finish(ctx, scan, err)
}

// finish waits for the fanned-out work and stamps completion
func (s *Scanner) finish(ctx context.Context, scan *models.Scan, err error) (*models.Scan, error) {
	s.pool.Await()
	scan.Complete()

	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.logger.Error(ctx, "Scan finished with errors", err, logging.Fields{"scan_id": scan.ID})
		return scan, err
	}

	s.logger.Info(ctx, "Scan completed", logging.Fields{
		"scan_id":     scan.ID,
		"duration":    scan.Duration().String(),
		"differences": scan.Len(),
	})
	return scan, nil
}
