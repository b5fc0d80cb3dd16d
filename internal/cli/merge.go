package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sdejongh/assurance/pkg/merge"
	"github.com/sdejongh/assurance/pkg/models"
)

// MergeFlags holds merge and restore command flags
type MergeFlags struct {
	Scan     string
	Strategy string
	Result   string
}

var mergeFlags MergeFlags

// NewMergeCommand creates the merge command
func NewMergeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Resolve the differences recorded by a scan",
		Long: `Resolve the unresolved results of a saved scan.

Strategies:
  source  make the target match the source (deleted items go to the trash)
  target  make the source match the target
  both    fill missing items on either side and keep both variants of conflicts

Without --strategy the strategy of the scan definition is used, or "both"
for ad hoc scans. Unless the definition enables auto_resolve_conflicts,
conflicts and deletions are left for manual resolution.`,
		Example: `  assurance merge --scan 3f2a9c1e
  assurance merge --scan 3f2a9c1e --result 0b7d... --strategy target`,
		RunE: runMerge,
	}

	cmd.Flags().StringVar(&mergeFlags.Scan, "scan", "", "scan id or unique id prefix (required)")
	cmd.Flags().StringVar(&mergeFlags.Strategy, "strategy", "", "merge strategy: source, target, both")
	cmd.Flags().StringVar(&mergeFlags.Result, "result", "", "merge a single result by id")
	cmd.MarkFlagRequired("scan")

	return cmd
}

// NewRestoreCommand creates the restore command
func NewRestoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Undo a merge that deleted an item",
		Long: `Put back an item removed by a merge. The trashed copy is moved back
when it still exists; otherwise the counterpart from the other tree is copied
into place. The result returns to UNRESOLVED.`,
		RunE: runRestore,
	}

	cmd.Flags().StringVar(&mergeFlags.Scan, "scan", "", "scan id or unique id prefix (required)")
	cmd.Flags().StringVar(&mergeFlags.Result, "result", "", "result id (required)")
	cmd.MarkFlagRequired("scan")
	cmd.MarkFlagRequired("result")

	return cmd
}

// openScan loads the application and the scan named by --scan
func openScan() (*app, *models.Scan, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	a, err := newApp(cfg)
	if err != nil {
		return nil, nil, err
	}
	scan, err := a.scans.Load(mergeFlags.Scan)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, scan, nil
}

func runMerge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, scan, err := openScan()
	if err != nil {
		return err
	}
	defer a.Close()

	sink, finish := createSink(cmd, a.cfg, a.logger, "merge")
	var engine *merge.Engine
	if mergeFlags.Strategy != "" {
		engine, err = merge.New(models.MergeStrategy(mergeFlags.Strategy), a.mergeConfig(sink))
	} else {
		engine, err = merge.ForScan(scan, a.mergeConfig(sink))
	}
	if err != nil {
		finish()
		return err
	}

	out := cmd.OutOrStdout()
	if mergeFlags.Result != "" {
		result, err := scan.Result(mergeFlags.Result)
		if err != nil {
			finish()
			return err
		}
		mergeErr := engine.MergeResult(ctx, scan, result)
		finish()
		if err := a.scans.Save(scan); err != nil {
			return err
		}
		if !a.cfg.Output.Quiet {
			fmt.Fprintf(out, "%s: %s\n", result.ID, result.Resolution)
		}
		if mergeErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", mergeErr)
			return &ExitError{Code: 1}
		}
		return nil
	}

	stats, mergeErr := engine.MergeScan(ctx, scan)
	finish()
	if err := a.scans.Save(scan); err != nil {
		return err
	}

	if !a.cfg.Output.Quiet {
		fmt.Fprintf(out, "Merged %s results with strategy %s (%s skipped, %s failed)\n",
			humanize.Comma(int64(stats.Submitted-stats.Failed)),
			engine.Strategy(),
			humanize.Comma(int64(stats.Skipped)),
			humanize.Comma(int64(stats.Failed)))
	}

	if mergeErr != nil {
		return fmt.Errorf("merge interrupted: %w", mergeErr)
	}
	if stats.Failed > 0 {
		return &ExitError{Code: 1}
	}
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, scan, err := openScan()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := scan.Result(mergeFlags.Result)
	if err != nil {
		return err
	}

	sink, finish := createSink(cmd, a.cfg, a.logger, "restore")
	engine, err := merge.ForScan(scan, a.mergeConfig(sink))
	if err != nil {
		finish()
		return err
	}

	restoreErr := engine.RestoreDeletedItem(ctx, scan, result)
	finish()
	if errors.Is(restoreErr, models.ErrNotRestorable) {
		return restoreErr
	}
	if err := a.scans.Save(scan); err != nil {
		return err
	}
	if restoreErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", restoreErr)
		return &ExitError{Code: 1}
	}

	if !a.cfg.Output.Quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", result.ID)
	}
	return nil
}
