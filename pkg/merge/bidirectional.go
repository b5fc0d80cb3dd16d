package merge

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sdejongh/assurance/pkg/logging"
	"github.com/sdejongh/assurance/pkg/models"
)

// bidirectional fills a missing side from the present one and keeps both
// variants when both sides exist
type bidirectional struct{}

// NewBidirectionalEngine creates the bidirectional engine
func NewBidirectionalEngine(cfg Config) (*Engine, error) {
	return newEngine(models.StrategyBoth, bidirectional{}, cfg)
}

func (bidirectional) resolve(ctx context.Context, e *Engine, scan *models.Scan, result *models.ComparisonResult) error {
	src, dst := result.Source, result.Target
	e.refresh(ctx, src)
	e.refresh(ctx, dst)

	switch {
	case src.Exists && dst.Exists:
		e.sink.Publish(fmt.Sprintf("Merging %s to %s", src.Path, dst.Path))
		return keepBoth(ctx, e, result)
	case src.Exists:
		e.sink.Publish(fmt.Sprintf("Merging %s to %s", src.Path, dst.Path))
		return e.replace(ctx, result, src, dst, models.ResolutionReplaceTarget)
	case dst.Exists:
		e.sink.Publish(fmt.Sprintf("Merging %s to %s", dst.Path, src.Path))
		return e.replace(ctx, result, dst, src, models.ResolutionReplaceSource)
	default:
		return e.fail(ctx, result, models.ErrNothingToMerge)
	}
}

// keepBoth renames each side to a conflict name and copies each variant into
// the other tree, so both trees end up holding both variants:
//
//	source/name.ext -> source/name.source-conflict.ext (+ copy in target)
//	target/name.ext -> target/name.target-conflict.ext (+ copy in source)
//
// A failing step undoes the steps already applied, so a retry starts from
// the original pair again.
func keepBoth(ctx context.Context, e *Engine, result *models.ComparisonResult) error {
	src, dst := result.Source.Path, result.Target.Path

	srcVariant := conflictPath(src, models.SideSource)
	dstVariant := conflictPath(dst, models.SideTarget)
	srcCopy := conflictPath(dst, models.SideSource)
	dstCopy := conflictPath(src, models.SideTarget)

	steps := []struct {
		apply func(ctx context.Context) error
		undo  func(ctx context.Context) error
	}{
		{
			func(ctx context.Context) error { return e.fs.Move(ctx, src, srcVariant) },
			func(ctx context.Context) error { return e.fs.Move(ctx, srcVariant, src) },
		},
		{
			func(ctx context.Context) error { return e.fs.Move(ctx, dst, dstVariant) },
			func(ctx context.Context) error { return e.fs.Move(ctx, dstVariant, dst) },
		},
		{
			func(ctx context.Context) error { return e.fs.Copy(ctx, srcVariant, srcCopy) },
			func(ctx context.Context) error { return e.fs.Remove(ctx, srcCopy) },
		},
		{
			func(ctx context.Context) error { return e.fs.Copy(ctx, dstVariant, dstCopy) },
			func(ctx context.Context) error { return e.fs.Remove(ctx, dstCopy) },
		},
	}

	for i, step := range steps {
		if err := step.apply(ctx); err != nil {
			// a failed copy may leave a partial file behind
			if i >= 2 {
				e.rollback(result, step.undo)
			}
			for j := i - 1; j >= 0; j-- {
				e.rollback(result, steps[j].undo)
			}
			return e.fail(ctx, result, fmt.Errorf("failed to keep both variants: %w", err))
		}
	}

	e.refresh(ctx, result.Source)
	e.refresh(ctx, result.Target)
	result.Resolve(models.ResolutionKeepBoth)
	return nil
}

// rollback runs undo even when ctx is already cancelled and logs failures
func (e *Engine) rollback(result *models.ComparisonResult, undo func(ctx context.Context) error) {
	ctx := context.Background()
	if err := undo(ctx); err != nil {
		e.logger.Error(ctx, "failed to roll back keep both", err, logging.Fields{"result_id": result.ID})
	}
}

// conflictPath inserts ".<side>-conflict" before the extension of path.
// Dot files like .bashrc have no extension.
func conflictPath(path string, side models.Side) string {
	dir, name := filepath.Split(path)
	ext := filepath.Ext(name)
	if ext == name {
		ext = ""
	}
	stem := name[:len(name)-len(ext)]
	return filepath.Join(dir, stem+"."+string(side)+"-conflict"+ext)
}
