package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sdejongh/assurance/internal/platform"
	"github.com/sdejongh/assurance/pkg/config"
	"github.com/sdejongh/assurance/pkg/logging"
	"github.com/sdejongh/assurance/pkg/merge"
	"github.com/sdejongh/assurance/pkg/models"
	"github.com/sdejongh/assurance/pkg/output"
	"github.com/sdejongh/assurance/pkg/ratelimit"
	"github.com/sdejongh/assurance/pkg/storage"
	"github.com/sdejongh/assurance/pkg/store"
	"github.com/sdejongh/assurance/pkg/workerpool"
)

// ExitError carries a process exit code out of a command
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// exitFor maps a scan status to nil or an ExitError
func exitFor(status models.ScanStatus) error {
	if code := status.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// loadConfig loads configuration and applies the global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(globalFlags.ConfigFile)
	if err != nil {
		return nil, err
	}
	applyGlobalFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyGlobalFlags overrides config values with command-line flags
func applyGlobalFlags(cfg *config.Config) {
	if globalFlags.Output != "" {
		cfg.Output.Format = globalFlags.Output
	}

	// Disable progress in quiet mode
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}

	if globalFlags.LogFile != "" {
		cfg.Logging.Enabled = true
		cfg.Logging.File = globalFlags.LogFile
	}
	if globalFlags.LogLevel != "" {
		cfg.Logging.Level = globalFlags.LogLevel
	}
	if globalFlags.LogFormat != "" {
		cfg.Logging.Format = globalFlags.LogFormat
	}
}

// parseBandwidth parses limits such as "10M" or "1.5 GiB" into bytes per second
func parseBandwidth(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, &models.ValidationError{Field: "bandwidth", Message: err.Error()}
	}
	return int64(n), nil
}

// createLogger creates a logger based on configuration
func createLogger(cfg *config.Config) (logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NewNullLogger(), nil
	}
	if cfg.Logging.File == "" {
		return logging.NewWriterLogger(os.Stderr, logging.Format(cfg.Logging.Format), logging.ParseLevel(cfg.Logging.Level)), nil
	}
	return logging.NewFileLogger(cfg.FileLoggerConfig())
}

// createSink picks where progress messages go: a bar on a terminal, plain
// lines when verbose, nothing otherwise. Messages are also logged at debug.
func createSink(cmd *cobra.Command, cfg *config.Config, logger logging.Logger, prefix string) (output.Sink, func()) {
	logSink := output.NewLoggerSink(logger)
	if cfg.Output.Quiet {
		return logSink, func() {}
	}

	if cfg.Output.Progress && isTerminal(cmd.ErrOrStderr()) {
		bar := output.NewBarSink(cmd.ErrOrStderr(), prefix)
		return output.MultiSink{bar, logSink}, bar.Finish
	}
	if globalFlags.Verbose {
		return output.MultiSink{output.NewWriterSink(cmd.ErrOrStderr()), logSink}, func() {}
	}
	return logSink, func() {}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// stores opens the scan and definition stores under the storage directory
func stores(cfg *config.Config) (*store.ScanStore, *store.DefinitionStore) {
	return store.NewScanStore(cfg.Storage.Dir), store.NewDefinitionStore(cfg.Storage.Dir)
}

// app bundles the collaborators shared by the scan, merge and restore commands
type app struct {
	cfg    *config.Config
	logger logging.Logger
	fs     *storage.Local
	pool   *workerpool.Pool
	scans  *store.ScanStore
	defs   *store.DefinitionStore
}

func newApp(cfg *config.Config) (*app, error) {
	logger, err := createLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	opts := []storage.Option{storage.WithBufferSize(cfg.Performance.BufferSize)}
	if cfg.Performance.BandwidthLimit > 0 {
		opts = append(opts, storage.WithLimiter(ratelimit.NewLimiter(cfg.Performance.BandwidthLimit)))
	}

	scans, defs := stores(cfg)
	return &app{
		cfg:    cfg,
		logger: logger,
		fs:     storage.NewLocal(opts...),
		pool:   workerpool.New(cfg.Performance.MaxWorkers, workerpool.WithLogger(logger)),
		scans:  scans,
		defs:   defs,
	}, nil
}

func (a *app) mergeConfig(sink output.Sink) merge.Config {
	return merge.Config{
		Filesystem:      a.fs,
		Pool:            a.pool,
		Sink:            sink,
		Logger:          a.logger,
		DeletedItemsDir: a.cfg.Merge.DeletedItemsDir,
	}
}

func (a *app) Close() {
	a.pool.Close()
	a.logger.Close()
}

// resolveRoots makes a source/target pair absolute and rejects nested roots
func resolveRoots(source, target string) (string, string, error) {
	src, err := platform.ResolveRoot(source)
	if err != nil {
		return "", "", fmt.Errorf("source: %w", err)
	}
	dst, err := platform.ResolveRoot(target)
	if err != nil {
		return "", "", fmt.Errorf("target: %w", err)
	}
	if platform.Overlaps(src, dst) {
		return "", "", &models.ValidationError{
			Field:   "mapping",
			Message: fmt.Sprintf("source %s and target %s must not contain each other", src, dst),
		}
	}
	return src, dst, nil
}
