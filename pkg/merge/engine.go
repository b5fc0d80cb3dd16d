// Package merge resolves recorded comparison results by copying, trashing
// or keeping both variants, and restores trashed items.
package merge

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sdejongh/assurance/pkg/logging"
	"github.com/sdejongh/assurance/pkg/models"
	"github.com/sdejongh/assurance/pkg/output"
	"github.com/sdejongh/assurance/pkg/storage"
	"github.com/sdejongh/assurance/pkg/workerpool"
)

// Config holds the collaborators shared by every engine variant
type Config struct {
	Filesystem storage.Filesystem
	Pool       *workerpool.Pool
	Sink       output.Sink
	Logger     logging.Logger
	// DeletedItemsDir is the root under which each scan gets its own trash directory
	DeletedItemsDir string
}

// resolver is the strategy-specific part of an engine
type resolver interface {
	resolve(ctx context.Context, e *Engine, scan *models.Scan, result *models.ComparisonResult) error
}

// Engine merges comparison results with one strategy
type Engine struct {
	strategy        models.MergeStrategy
	resolver        resolver
	fs              storage.Filesystem
	pool            *workerpool.Pool
	sink            output.Sink
	logger          logging.Logger
	deletedItemsDir string
}

func newEngine(strategy models.MergeStrategy, r resolver, cfg Config) (*Engine, error) {
	if cfg.Filesystem == nil {
		return nil, &models.ValidationError{Field: "filesystem", Message: "required"}
	}
	if cfg.Pool == nil {
		return nil, &models.ValidationError{Field: "pool", Message: "required"}
	}
	if cfg.DeletedItemsDir == "" {
		return nil, &models.ValidationError{Field: "deleted_items_dir", Message: "required"}
	}
	return &Engine{
		strategy:        strategy,
		resolver:        r,
		fs:              cfg.Filesystem,
		pool:            cfg.Pool,
		sink:            output.OrNull(cfg.Sink),
		logger:          logging.OrNull(cfg.Logger),
		deletedItemsDir: cfg.DeletedItemsDir,
	}, nil
}

// Strategy returns the merge strategy implemented by the engine
func (e *Engine) Strategy() models.MergeStrategy {
	return e.strategy
}

// MergeResult resolves one result in place. Failures are recorded on the
// result as a processing error and also returned.
func (e *Engine) MergeResult(ctx context.Context, scan *models.Scan, result *models.ComparisonResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if result.Source.IsNull() || result.Target.IsNull() {
		return e.fail(ctx, result, fmt.Errorf("%w: cannot merge result %s", models.ErrNullFileReference, result.ID))
	}
	return e.resolver.resolve(ctx, e, scan, result)
}

// MergeStats counts the outcome of a batch merge
type MergeStats struct {
	Submitted int
	Skipped   int
	Failed    int
}

// MergeScan merges every eligible result of scan on the pool and waits for
// the batch. One result failing never stops the others.
func (e *Engine) MergeScan(ctx context.Context, scan *models.Scan) (MergeStats, error) {
	var stats MergeStats
	var failed atomic.Int32

	e.logger.Info(ctx, "Merge started", logging.Fields{
		"scan_id":  scan.ID,
		"strategy": string(e.strategy),
	})

	var submitErr error
	for _, result := range scan.Results() {
		if !e.shouldMerge(ctx, scan.Definition, result) {
			stats.Skipped++
			continue
		}
		r := result
		err := e.pool.Submit(ctx, func(ctx context.Context) {
			if err := e.MergeResult(ctx, scan, r); err != nil {
				failed.Add(1)
			}
		})
		if err != nil {
			submitErr = err
			break
		}
		stats.Submitted++
	}

	e.pool.Await()
	stats.Failed = int(failed.Load())

	e.logger.Info(ctx, "Merge completed", logging.Fields{
		"scan_id":   scan.ID,
		"submitted": stats.Submitted,
		"skipped":   stats.Skipped,
		"failed":    stats.Failed,
	})
	return stats, submitErr
}

// shouldMerge reports whether result is eligible for a batch merge.
// Without auto-resolution, conflicts are left alone and the running engine
// never deletes: a side present only where its strategy would trash it is
// skipped.
func (e *Engine) shouldMerge(ctx context.Context, definition *models.ScanDefinition, result *models.ComparisonResult) bool {
	if result.Resolution != models.ResolutionUnresolved {
		return false
	}
	if definition == nil || definition.AutoResolveConflicts {
		return true
	}

	e.refresh(ctx, result.Source)
	e.refresh(ctx, result.Target)
	srcExists := !result.Source.IsNull() && result.Source.Exists
	dstExists := !result.Target.IsNull() && result.Target.Exists

	switch {
	case srcExists && dstExists:
		return false
	case srcExists && !result.Target.IsNull() && e.strategy == models.StrategyTarget:
		return false
	case dstExists && !result.Source.IsNull() && e.strategy == models.StrategySource:
		return false
	}
	return true
}

// RestoreDeletedItem undoes a DELETE_SOURCE or DELETE_TARGET resolution.
// The direction comes from the resolution, not from the engine strategy:
// the trashed copy is moved back, or failing that the counterpart is copied
// into place. Success resets the result to UNRESOLVED.
func (e *Engine) RestoreDeletedItem(ctx context.Context, scan *models.Scan, result *models.ComparisonResult) error {
	var side, counterpart models.Side
	switch result.Resolution {
	case models.ResolutionDeleteSource:
		side, counterpart = models.SideSource, models.SideTarget
	case models.ResolutionDeleteTarget:
		side, counterpart = models.SideTarget, models.SideSource
	default:
		return fmt.Errorf("%w: resolution is %s", models.ErrNotRestorable, result.Resolution)
	}

	ref := result.Ref(side)
	if ref.IsNull() {
		return e.fail(ctx, result, fmt.Errorf("%w: cannot restore result %s", models.ErrNullFileReference, result.ID))
	}
	e.sink.Publish("Restoring " + ref.Path)

	trashed := result.DeletedItemLocation(scan.DeletedItemsDir(e.deletedItemsDir), side)
	inTrash, err := e.fs.Exists(ctx, trashed)
	if err != nil {
		return e.fail(ctx, result, err)
	}

	switch other := result.Ref(counterpart); {
	case inTrash:
		if err := e.fs.Move(ctx, trashed, ref.Path); err != nil {
			return e.fail(ctx, result, fmt.Errorf("could not move item from deleted items location %s: %w", trashed, err))
		}
	case !other.IsNull() && e.exists(ctx, other.Path):
		if err := e.fs.Copy(ctx, other.Path, ref.Path); err != nil {
			return e.fail(ctx, result, err)
		}
	default:
		return e.fail(ctx, result, models.ErrItemToRestoreMissing)
	}

	e.refresh(ctx, ref)
	result.Reset()
	e.logger.Info(ctx, "item restored", logging.Fields{"path": ref.Path, "result_id": result.ID})
	return nil
}

// replace copies from over to and records resolution
func (e *Engine) replace(ctx context.Context, result *models.ComparisonResult, from, to *models.FileReference, resolution models.Resolution) error {
	if err := e.fs.Copy(ctx, from.Path, to.Path); err != nil {
		return e.fail(ctx, result, err)
	}
	e.refresh(ctx, to)
	result.Resolve(resolution)
	e.logger.Debug(ctx, "item replaced", logging.Fields{"from": from.Path, "to": to.Path})
	return nil
}

// trash moves the item on side into the scan's deleted items directory
func (e *Engine) trash(ctx context.Context, scan *models.Scan, result *models.ComparisonResult, side models.Side, resolution models.Resolution) error {
	ref := result.Ref(side)
	location := result.DeletedItemLocation(scan.DeletedItemsDir(e.deletedItemsDir), side)
	if err := e.fs.Move(ctx, ref.Path, location); err != nil {
		return e.fail(ctx, result, err)
	}
	e.refresh(ctx, ref)
	result.Resolve(resolution)
	e.logger.Debug(ctx, "item moved to deleted items", logging.Fields{"path": ref.Path, "location": location})
	return nil
}

// refresh re-reads ref's attributes through the engine's filesystem.
// A path that cannot be read is treated as missing.
func (e *Engine) refresh(ctx context.Context, ref *models.FileReference) {
	if ref.IsNull() {
		return
	}
	info, err := e.fs.Lstat(ctx, ref.Path)
	if err != nil {
		ref.Exists, ref.IsDir, ref.IsSymlink = false, false, false
		return
	}
	ref.Exists, ref.IsDir, ref.IsSymlink = true, info.IsDir, info.IsSymlink
}

func (e *Engine) exists(ctx context.Context, path string) bool {
	ok, err := e.fs.Exists(ctx, path)
	return err == nil && ok
}

// fail records err on result and returns it
func (e *Engine) fail(ctx context.Context, result *models.ComparisonResult, err error) error {
	result.Fail(err)
	e.logger.Error(ctx, "merge failed", err, logging.Fields{
		"result_id": result.ID,
		"source":    result.Source.PathOrEmpty(),
		"target":    result.Target.PathOrEmpty(),
	})
	return err
}
