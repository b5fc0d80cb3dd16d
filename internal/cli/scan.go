package cli

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/sdejongh/assurance/pkg/compare"
	"github.com/sdejongh/assurance/pkg/models"
	"github.com/sdejongh/assurance/pkg/output"
	"github.com/sdejongh/assurance/pkg/sync"
)

// ScanFlags holds scan command flags
type ScanFlags struct {
	Source       string
	Target       string
	Definition   string
	Ignore       []string
	Quick        bool
	Parallel     int
	Bandwidth    string
	Report       string
	ReportFormat string
	NoSave       bool
}

var scanFlags ScanFlags

// NewScanCommand creates the scan command
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Compare two folder trees and record the differences",
		Long: `Compare a source and a target tree, or every mapping of a saved scan
definition, and record each divergence as a comparison result.
The scan is saved so it can be merged later.

Exit codes: 0 no differences, 1 differences or errors recorded, 2 failure.`,
		Example: `  assurance scan --source ./photos --target /mnt/backup/photos
  assurance scan --definition nightly --quick`,
		RunE: runScan,
	}

	cmd.Flags().StringVarP(&scanFlags.Source, "source", "s", "", "source directory path")
	cmd.Flags().StringVarP(&scanFlags.Target, "target", "t", "", "target directory path")
	cmd.Flags().StringVarP(&scanFlags.Definition, "definition", "d", "", "name of a saved scan definition")
	cmd.MarkFlagsRequiredTogether("source", "target")
	cmd.MarkFlagsMutuallyExclusive("definition", "source")
	cmd.MarkFlagsOneRequired("definition", "source")

	cmd.Flags().StringArrayVar(&scanFlags.Ignore, "ignore", nil, "glob pattern to ignore (repeatable, e.g. \"build/\", \"**/*.bak\")")
	cmd.Flags().BoolVar(&scanFlags.Quick, "quick", false, "quick comparison: only hash files whose attributes match")
	cmd.Flags().IntVarP(&scanFlags.Parallel, "parallel", "p", 0, "number of parallel workers (default from config)")
	cmd.Flags().StringVarP(&scanFlags.Bandwidth, "bandwidth", "b", "", "read bandwidth limit (e.g. \"10M\", \"1GiB\")")
	cmd.Flags().StringVar(&scanFlags.Report, "report", "", "write the full result list to file")
	cmd.Flags().StringVar(&scanFlags.ReportFormat, "report-format", "human", "report file format: human, json")
	cmd.Flags().BoolVar(&scanFlags.NoSave, "no-save", false, "do not keep the scan in the scan history")

	return cmd
}

// validateScanFlags checks the ignore patterns before anything is loaded
func validateScanFlags() error {
	for _, pattern := range scanFlags.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return &models.ValidationError{Field: "ignore", Message: fmt.Sprintf("invalid pattern %q", pattern)}
		}
	}
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := validateScanFlags(); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Scan.IgnorePatterns = append(cfg.Scan.IgnorePatterns, scanFlags.Ignore...)
	if scanFlags.Quick {
		cfg.Scan.DeepScan = false
	}
	if scanFlags.Parallel > 0 {
		cfg.Performance.MaxWorkers = scanFlags.Parallel
	}
	if scanFlags.Bandwidth != "" {
		if cfg.Performance.BandwidthLimit, err = parseBandwidth(scanFlags.Bandwidth); err != nil {
			return err
		}
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var definition *models.ScanDefinition
	var source, target string
	if scanFlags.Definition != "" {
		if definition, err = a.defs.Get(scanFlags.Definition); err != nil {
			return err
		}
	} else if source, target, err = resolveRoots(scanFlags.Source, scanFlags.Target); err != nil {
		return err
	}

	sink, finish := createSink(cmd, cfg, a.logger, "scan")
	scanner := sync.NewScanner(
		a.fs,
		compare.NewFactory(a.fs, cfg.Performance.BufferSize, a.logger),
		a.pool,
		sink,
		a.logger,
		sync.ScannerConfig{Options: cfg.ScanOptions(), DeepScan: cfg.Scan.DeepScan},
	)

	var scan *models.Scan
	var scanErr error
	if definition != nil {
		scan, scanErr = scanner.Run(ctx, definition)
	} else {
		scan, scanErr = scanner.RunPair(ctx, source, target)
	}
	finish()
	if scan == nil {
		return scanErr
	}

	if !scanFlags.NoSave {
		if err := a.scans.Save(scan); err != nil {
			return err
		}
	}

	if !cfg.Output.Quiet {
		report, err := output.NewReport(cfg.Output.Format, globalFlags.Verbose)
		if err != nil {
			return err
		}
		if err := report.Write(cmd.OutOrStdout(), scan); err != nil {
			return err
		}
	}

	if scanFlags.Report != "" {
		if err := output.WriteReportFile(scan, scanFlags.Report, scanFlags.ReportFormat); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if scanErr != nil {
		return fmt.Errorf("scan failed: %w", scanErr)
	}
	return exitFor(scan.Summary().Status)
}
