// Package sync walks a source and a target tree in parallel and records
// every divergence between them in a scan.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/sdejongh/assurance/pkg/compare"
	"github.com/sdejongh/assurance/pkg/logging"
	"github.com/sdejongh/assurance/pkg/models"
	"github.com/sdejongh/assurance/pkg/output"
	"github.com/sdejongh/assurance/pkg/storage"
	"github.com/sdejongh/assurance/pkg/workerpool"
)

// TreeComparator compares one source root with one target root.
// Sub-directory pairs are fanned out on the pool.
type TreeComparator struct {
	fs         storage.Filesystem
	comparator compare.Comparator
	pool       *workerpool.Pool
	sink       output.Sink
	logger     logging.Logger
}

// NewTreeComparator creates a tree comparator. sink and logger may be nil.
func NewTreeComparator(
	fsys storage.Filesystem,
	comparator compare.Comparator,
	pool *workerpool.Pool,
	sink output.Sink,
	logger logging.Logger,
) *TreeComparator {
	return &TreeComparator{
		fs:         fsys,
		comparator: comparator,
		pool:       pool,
		sink:       output.OrNull(sink),
		logger:     logging.OrNull(logger),
	}
}

// walk is the read-only state shared by every pair of one comparison
type walk struct {
	scan   *models.Scan
	filter *Filter
	depth  models.Depth
}

// Compare records the differences between source and target into scan.
// It returns once the roots are classified; work fanned out below them is
// still running until the pool is awaited. Only a failure to enumerate the
// roots themselves, or cancellation, is returned.
func (t *TreeComparator) Compare(
	ctx context.Context,
	source, target string,
	scan *models.Scan,
	opts models.ScanOptions,
	exclusions []string,
) error {
	source, target = cleanPath(source), cleanPath(target)
	w := &walk{
		scan:   scan,
		filter: NewFilter(opts, exclusions, source, target),
		depth:  scan.Depth(),
	}
	return t.comparePair(ctx, w, source, target)
}

func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

// comparePair classifies one pair. The returned error is an enumeration
// failure of this pair's directories or a cancellation.
func (t *TreeComparator) comparePair(ctx context.Context, w *walk, source, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.filter.SkipPair(source, target) {
		return nil
	}

	t.sink.Publish(fmt.Sprintf("Comparing %s to %s", source, target))

	srcInfo, err := t.stat(ctx, source)
	if err != nil {
		t.recordError(ctx, w, source, target, err)
		return nil
	}
	dstInfo, err := t.stat(ctx, target)
	if err != nil {
		t.recordError(ctx, w, source, target, err)
		return nil
	}

	switch {
	case srcInfo == nil && dstInfo == nil:
		t.logger.Info(ctx, "source and target are both missing", logging.Fields{
			"source": source,
			"target": target,
		})
		return nil

	case srcInfo == nil || dstInfo == nil:
		t.record(ctx, w, source, target, models.ReasonFileNull)
		return nil

	case srcInfo.IsDir != dstInfo.IsDir && !srcInfo.IsSymlink && !dstInfo.IsSymlink:
		t.record(ctx, w, source, target, models.ReasonFileDirectoryMismatch)
		return nil

	case srcInfo.IsSymlink && dstInfo.IsSymlink:
		t.compareLinks(ctx, w, source, target)
		return nil

	case srcInfo.IsSymlink != dstInfo.IsSymlink:
		t.record(ctx, w, source, target, models.ReasonSymbolicLinkMismatch)
		return nil

	case srcInfo.IsDir:
		return t.compareDirectories(ctx, w, source, target)

	case srcInfo.IsRegular && dstInfo.IsRegular:
		t.compareFiles(ctx, w, source, target)
		return nil

	default:
		// devices, sockets and pipes are never read
		if srcInfo.Mode.Type() != dstInfo.Mode.Type() {
			t.record(ctx, w, source, target, models.ReasonCompareFailed)
		}
		return nil
	}
}

// stat returns nil, nil for an empty or missing path
func (t *TreeComparator) stat(ctx context.Context, path string) (*storage.FileInfo, error) {
	if path == "" {
		return nil, nil
	}
	info, err := t.fs.Lstat(ctx, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return info, err
}

func (t *TreeComparator) compareLinks(ctx context.Context, w *walk, source, target string) {
	srcLink, err := t.fs.Readlink(ctx, source)
	if err != nil {
		t.recordError(ctx, w, source, target, err)
		return
	}
	dstLink, err := t.fs.Readlink(ctx, target)
	if err != nil {
		t.recordError(ctx, w, source, target, err)
		return
	}
	if srcLink != dstLink {
		t.record(ctx, w, source, target, models.ReasonSymbolicLinkMismatch)
	}
}

func (t *TreeComparator) compareFiles(ctx context.Context, w *walk, source, target string) {
	equal, err := t.comparator.Compare(ctx, source, target, w.depth)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		t.recordError(ctx, w, source, target, err)
		return
	}
	if !equal {
		t.record(ctx, w, source, target, models.ReasonCompareFailed)
		return
	}
	t.logger.Debug(ctx, "files are identical", logging.Fields{"source": source, "target": target})
}

// compareDirectories fans out every child present on both sides and records
// children present on one side only. The target is enumerated once per pair.
func (t *TreeComparator) compareDirectories(ctx context.Context, w *walk, source, target string) error {
	srcNames, err := t.fs.ReadDir(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to enumerate source directory: %w", err)
	}

	inSource := make(map[string]struct{}, len(srcNames))
	for _, name := range srcNames {
		inSource[name] = struct{}{}
		if err := ctx.Err(); err != nil {
			return err
		}

		srcChild := filepath.Join(source, name)
		dstChild := filepath.Join(target, name)
		if w.filter.SkipPair(srcChild, dstChild) {
			continue
		}

		exists, err := t.fs.Exists(ctx, dstChild)
		if err != nil {
			t.recordError(ctx, w, srcChild, dstChild, err)
			continue
		}
		if !exists {
			t.record(ctx, w, srcChild, dstChild, models.ReasonTargetDoesNotExist)
			continue
		}
		t.submit(ctx, w, srcChild, dstChild)
	}

	dstNames, err := t.fs.ReadDir(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to enumerate target directory: %w", err)
	}
	for _, name := range dstNames {
		if _, ok := inSource[name]; ok {
			continue
		}
		srcChild := filepath.Join(source, name)
		dstChild := filepath.Join(target, name)
		if w.filter.SkipPair(srcChild, dstChild) {
			continue
		}
		t.record(ctx, w, srcChild, dstChild, models.ReasonSourceDoesNotExist)
	}
	return nil
}

// submit schedules a child pair. Failures below the roots are recorded, not returned.
func (t *TreeComparator) submit(ctx context.Context, w *walk, source, target string) {
	err := t.pool.Submit(ctx, func(ctx context.Context) {
		if err := t.comparePair(ctx, w, source, target); err != nil && ctx.Err() == nil {
			t.recordError(ctx, w, source, target, err)
		}
	})
	if err != nil && ctx.Err() == nil {
		t.recordError(ctx, w, source, target, err)
	}
}

func (t *TreeComparator) record(ctx context.Context, w *walk, source, target string, reason models.Reason) {
	w.scan.AddResult(models.NewComparisonResult(source, target, reason))
	t.logger.Info(ctx, "difference found", logging.Fields{
		"source": source,
		"target": target,
		"reason": string(reason),
	})
}

// recordError stores a pair that could not be compared
func (t *TreeComparator) recordError(ctx context.Context, w *walk, source, target string, err error) {
	result := models.NewComparisonResult(source, target, models.ReasonUndetermined)
	result.Fail(err)
	w.scan.AddResult(result)
	t.logger.Error(ctx, "error comparing files", err, logging.Fields{
		"source": source,
		"target": target,
	})
}
