package merge

import (
	"github.com/sdejongh/assurance/pkg/models"
)

// New returns the engine for strategy. An empty strategy selects the
// bidirectional engine.
func New(strategy models.MergeStrategy, cfg Config) (*Engine, error) {
	switch strategy {
	case models.StrategySource:
		return NewSourceEngine(cfg)
	case models.StrategyTarget:
		return NewTargetEngine(cfg)
	case models.StrategyBoth, "":
		return NewBidirectionalEngine(cfg)
	default:
		parsed, err := models.ParseMergeStrategy(string(strategy))
		if err != nil {
			return nil, err
		}
		return New(parsed, cfg)
	}
}

// ForScan returns the engine configured on the scan's definition, or the
// bidirectional engine for ad hoc scans
func ForScan(scan *models.Scan, cfg Config) (*Engine, error) {
	if scan.Definition == nil {
		return NewBidirectionalEngine(cfg)
	}
	return New(scan.Definition.MergeStrategy, cfg)
}
