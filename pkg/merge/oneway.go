package merge

import (
	"context"
	"fmt"

	"github.com/sdejongh/assurance/pkg/models"
)

// oneWay makes the losing side match the winning side: the winner is copied
// over the loser, or the loser is trashed when the winner no longer exists.
type oneWay struct {
	winner models.Side
}

// NewSourceEngine creates the source-wins engine
func NewSourceEngine(cfg Config) (*Engine, error) {
	return newEngine(models.StrategySource, oneWay{winner: models.SideSource}, cfg)
}

// NewTargetEngine creates the target-wins engine
func NewTargetEngine(cfg Config) (*Engine, error) {
	return newEngine(models.StrategyTarget, oneWay{winner: models.SideTarget}, cfg)
}

func (o oneWay) resolve(ctx context.Context, e *Engine, scan *models.Scan, result *models.ComparisonResult) error {
	loser, replaced, deleted := models.SideTarget, models.ResolutionReplaceTarget, models.ResolutionDeleteTarget
	if o.winner == models.SideTarget {
		loser, replaced, deleted = models.SideSource, models.ResolutionReplaceSource, models.ResolutionDeleteSource
	}

	from, to := result.Ref(o.winner), result.Ref(loser)
	e.sink.Publish(fmt.Sprintf("Merging %s to %s", from.Path, to.Path))

	e.refresh(ctx, from)
	e.refresh(ctx, to)
	switch {
	case from.Exists:
		return e.replace(ctx, result, from, to, replaced)
	case to.Exists:
		return e.trash(ctx, scan, result, loser, deleted)
	default:
		return e.fail(ctx, result, models.ErrNothingToMerge)
	}
}
