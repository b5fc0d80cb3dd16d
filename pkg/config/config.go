package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sdejongh/assurance/pkg/logging"
	"github.com/sdejongh/assurance/pkg/models"
)

// Config represents the application configuration
type Config struct {
	Scan        ScanConfig        `yaml:"scan" mapstructure:"scan"`
	Merge       MergeConfig       `yaml:"merge" mapstructure:"merge"`
	Performance PerformanceConfig `yaml:"performance" mapstructure:"performance"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
	Storage     StorageConfig     `yaml:"storage" mapstructure:"storage"`
}

// ScanConfig holds comparison settings. The include_* and auto_resolve
// values seed new scan definitions.
type ScanConfig struct {
	IgnoredFileNames          []string `yaml:"ignored_file_names" mapstructure:"ignored_file_names"`
	IgnoredExtensions         []string `yaml:"ignored_extensions" mapstructure:"ignored_extensions"`
	IgnorePatterns            []string `yaml:"ignore_patterns" mapstructure:"ignore_patterns"`
	DeepScan                  bool     `yaml:"deep_scan" mapstructure:"deep_scan"`
	IncludeTimestamps         bool     `yaml:"include_timestamps" mapstructure:"include_timestamps"`
	IncludeAdvancedAttributes bool     `yaml:"include_advanced_attributes" mapstructure:"include_advanced_attributes"`
	AutoResolveConflicts      bool     `yaml:"auto_resolve_conflicts" mapstructure:"auto_resolve_conflicts"`
}

// MergeConfig holds merge settings
type MergeConfig struct {
	Strategy        string `yaml:"strategy" mapstructure:"strategy"` // "source", "target" or "both"
	DeletedItemsDir string `yaml:"deleted_items_dir" mapstructure:"deleted_items_dir"`
}

// PerformanceConfig holds performance-related settings
type PerformanceConfig struct {
	MaxWorkers     int   `yaml:"max_workers" mapstructure:"max_workers"`
	BufferSize     int   `yaml:"buffer_size" mapstructure:"buffer_size"`
	BandwidthLimit int64 `yaml:"bandwidth_limit" mapstructure:"bandwidth_limit"` // bytes/s, 0 = unlimited
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format" mapstructure:"format"`     // "human" or "json"
	Progress bool   `yaml:"progress" mapstructure:"progress"` // Show a progress bar on terminals
	Quiet    bool   `yaml:"quiet" mapstructure:"quiet"`       // Suppress non-error output
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Format     string `yaml:"format" mapstructure:"format"` // "json" or "text"
	Level      string `yaml:"level" mapstructure:"level"`   // "debug", "info", "warn", "error"
	File       string `yaml:"file" mapstructure:"file"`     // Log file path (empty = stderr)
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// StorageConfig holds where scans and definitions are kept
type StorageConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

const minBufferSize = 4096

// Default returns the default configuration
func Default() *Config {
	home := homeDir()
	return &Config{
		Scan: ScanConfig{
			IgnoredFileNames:          []string{".DS_Store", "Thumbs.db", "desktop.ini"},
			IgnoredExtensions:         []string{},
			IgnorePatterns:            []string{},
			DeepScan:                  true,
			IncludeTimestamps:         true,
			IncludeAdvancedAttributes: true,
			AutoResolveConflicts:      false,
		},
		Merge: MergeConfig{
			Strategy:        string(models.StrategySource),
			DeletedItemsDir: filepath.Join(home, "deleted"),
		},
		Performance: PerformanceConfig{
			MaxWorkers:     4,
			BufferSize:     65536,
			BandwidthLimit: 0,
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
			Quiet:    false,
		},
		Logging: LoggingConfig{
			Enabled:    false,
			Format:     "json",
			Level:      "info",
			File:       filepath.Join(home, "logs", "assurance.log"),
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
		Storage: StorageConfig{
			Dir: home,
		},
	}
}

// homeDir returns ~/.assurance, or .assurance when there is no home directory
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".assurance"
	}
	return filepath.Join(home, ".assurance")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Performance.MaxWorkers < 0 {
		return &models.ValidationError{
			Field:   "performance.max_workers",
			Message: "must not be negative",
		}
	}

	if c.Performance.BufferSize < minBufferSize {
		return &models.ValidationError{
			Field:   "performance.buffer_size",
			Message: fmt.Sprintf("must be at least %d bytes", minBufferSize),
		}
	}

	if c.Performance.BandwidthLimit < 0 {
		return &models.ValidationError{
			Field:   "performance.bandwidth_limit",
			Message: "must not be negative",
		}
	}

	if _, err := models.ParseMergeStrategy(c.Merge.Strategy); err != nil {
		return &models.ValidationError{
			Field:   "merge.strategy",
			Message: "must be 'source', 'target', or 'both'",
		}
	}

	if c.Merge.DeletedItemsDir == "" {
		return &models.ValidationError{
			Field:   "merge.deleted_items_dir",
			Message: "cannot be empty",
		}
	}

	for _, pattern := range c.Scan.IgnorePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return &models.ValidationError{
				Field:   "scan.ignore_patterns",
				Message: fmt.Sprintf("invalid pattern %q", pattern),
			}
		}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'human' or 'json'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	if c.Storage.Dir == "" {
		return &models.ValidationError{
			Field:   "storage.dir",
			Message: "cannot be empty",
		}
	}

	return nil
}

// ScanOptions returns the normalised ignore settings handed to the tree comparator
func (c *Config) ScanOptions() models.ScanOptions {
	return models.NewScanOptions(c.Scan.IgnoredFileNames, c.Scan.IgnoredExtensions, c.Scan.IgnorePatterns)
}

// MergeStrategy returns the configured strategy
func (c *Config) MergeStrategy() models.MergeStrategy {
	strategy, err := models.ParseMergeStrategy(c.Merge.Strategy)
	if err != nil {
		return models.StrategySource
	}
	return strategy
}

// ApplyDefinitionDefaults copies the configured scan and merge defaults onto a new definition
func (c *Config) ApplyDefinitionDefaults(d *models.ScanDefinition) {
	d.MergeStrategy = c.MergeStrategy()
	d.AutoResolveConflicts = c.Scan.AutoResolveConflicts
	d.IncludeNonCreationTimestamps = c.Scan.IncludeTimestamps
	d.IncludeAdvancedAttributes = c.Scan.IncludeAdvancedAttributes
}

// FileLoggerConfig converts the logging section for logging.NewFileLogger
func (c *Config) FileLoggerConfig() logging.FileLoggerConfig {
	return logging.FileLoggerConfig{
		Path:       c.Logging.File,
		Format:     logging.Format(c.Logging.Format),
		Level:      logging.ParseLevel(c.Logging.Level),
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		Compress:   c.Logging.Compress,
	}
}
