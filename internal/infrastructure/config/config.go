package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Patchbay Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Catalog  CatalogConfig  `yaml:"catalog"`
	Sync     SyncConfig     `yaml:"sync"`
	Database DatabaseConfig `yaml:"database"`
	Audit    AuditConfig    `yaml:"audit"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CatalogConfig contains settings for the preset catalog engine.
type CatalogConfig struct {
	// Root is the catalog root directory holding the
	// manufacturer/device/preset document tree.
	Root  string         `yaml:"root"`
	Scan  ScanConfig     `yaml:"scan"`
	Cache DocCacheConfig `yaml:"cache"`
	Watch WatchConfig    `yaml:"watch"`
}

// ScanConfig contains catalog scanner settings.
type ScanConfig struct {
	// Workers bounds concurrent document parsing during a scan.
	// 0 selects an automatic width derived from the CPU count.
	Workers int `yaml:"workers"`
}

// DocCacheConfig contains document cache settings.
type DocCacheConfig struct {
	// TTL is the cache entry lifetime in seconds.
	TTL int `yaml:"ttl"`
}

// WatchConfig contains catalog tree watcher settings.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
	// DebounceMS is the quiet period after the last filesystem event
	// before a rescan fires, in milliseconds.
	DebounceMS int `yaml:"debounce_ms"`
}

// SyncConfig contains git synchronisation settings for the catalog tree.
type SyncConfig struct {
	Enabled bool `yaml:"enabled"`

	// Role selects the repository layout: "release" keeps the catalog as a
	// standalone clone, "development" keeps it as a submodule of the parent
	// repository.
	Role string `yaml:"role"`

	// RemoteURL overrides the built-in catalog repository URL.
	RemoteURL string `yaml:"remote_url"`
	Branch    string `yaml:"branch"`

	// ParentDir is the parent repository working tree for submodule mode.
	// Empty means the directory above the catalog root.
	ParentDir string `yaml:"parent_dir"`

	CommitMessage string `yaml:"commit_message"`
	AuthorName    string `yaml:"author_name"`
	AuthorEmail   string `yaml:"author_email"`
}

// DatabaseConfig contains SQLite database settings for the audit store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// AuditConfig controls the mutation audit trail.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PATCHBAY_SECTION_KEY
// For example: PATCHBAY_CATALOG_ROOT, PATCHBAY_SYNC_REMOTE_URL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Root: "./data/catalog",
			Scan: ScanConfig{
				Workers: 0,
			},
			Cache: DocCacheConfig{
				TTL: 30,
			},
			Watch: WatchConfig{
				Enabled:    false,
				DebounceMS: 500,
			},
		},
		Sync: SyncConfig{
			Enabled:       false,
			Role:          "release",
			Branch:        "main",
			CommitMessage: "catalog sync",
			AuthorName:    "patchbay",
			AuthorEmail:   "sync@patchbay.local",
		},
		Database: DatabaseConfig{
			Path:        "./data/patchbay.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Audit: AuditConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PATCHBAY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Catalog
	if v := os.Getenv("PATCHBAY_CATALOG_ROOT"); v != "" {
		cfg.Catalog.Root = v
	}

	// Sync
	if v := os.Getenv("PATCHBAY_SYNC_REMOTE_URL"); v != "" {
		cfg.Sync.RemoteURL = v
	}
	if v := os.Getenv("PATCHBAY_SYNC_ROLE"); v != "" {
		cfg.Sync.Role = v
	}

	// Database
	if v := os.Getenv("PATCHBAY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Logging
	if v := os.Getenv("PATCHBAY_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Catalog validation
	if c.Catalog.Root == "" {
		errs = append(errs, "catalog.root is required")
	}
	const maxScanWorkers = 256
	if c.Catalog.Scan.Workers < 0 || c.Catalog.Scan.Workers > maxScanWorkers {
		errs = append(errs, "catalog.scan.workers must be between 0 and 256")
	}
	if c.Catalog.Cache.TTL < 0 {
		errs = append(errs, "catalog.cache.ttl must not be negative")
	}
	if c.Catalog.Watch.DebounceMS < 0 {
		errs = append(errs, "catalog.watch.debounce_ms must not be negative")
	}

	// Sync validation
	switch c.Sync.Role {
	case "release", "development":
	default:
		errs = append(errs, "sync.role must be \"release\" or \"development\"")
	}

	// Database validation
	if c.Audit.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when audit is enabled")
	}

	// Logging validation
	if strings.EqualFold(c.Logging.Output, "file") && c.Logging.File.Path == "" {
		errs = append(errs, "logging.file.path is required when logging.output is \"file\"")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetCacheTTL returns the document cache TTL as a Duration.
func (c *Config) GetCacheTTL() time.Duration {
	return time.Duration(c.Catalog.Cache.TTL) * time.Second
}

// GetWatchDebounce returns the watcher debounce interval as a Duration.
func (c *Config) GetWatchDebounce() time.Duration {
	return time.Duration(c.Catalog.Watch.DebounceMS) * time.Millisecond
}
