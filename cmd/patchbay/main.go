// Patchbay Core - Hardware Preset Catalog Engine
//
// This is the main entry point for the Patchbay Core application.
// Patchbay serves a directory tree of hardware instrument presets
// (manufacturer -> device -> collection -> preset) as plain JSON:
//   - Filesystem as the source of truth, git as the distribution layer
//   - Offline-first operation (a degraded remote never blocks reads)
//   - Self-healing synchronisation with a tiered repair ladder
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/patchbay-dev/patchbay-core/migrations"

	"github.com/patchbay-dev/patchbay-core/internal/audit"
	"github.com/patchbay-dev/patchbay-core/internal/catalog"
	"github.com/patchbay-dev/patchbay-core/internal/gitsync"
	"github.com/patchbay-dev/patchbay-core/internal/infrastructure/config"
	"github.com/patchbay-dev/patchbay-core/internal/infrastructure/database"
	"github.com/patchbay-dev/patchbay-core/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// options carries the parsed command-line switches into run.
type options struct {
	repair bool
	push   bool
}

func main() {
	showVersion := flag.Bool("version", false, "print version information and exit")
	repair := flag.Bool("repair", false, "run the catalog repair ladder and exit")
	push := flag.Bool("push", false, "commit and push local catalog changes and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("patchbay %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	// This is the Go pattern for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run the application
	if err := run(ctx, options{repair: *repair, push: *push}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Parsed command-line switches
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Patchbay Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Build the sync engine before anything touches the catalog root:
	// the one-shot modes are its whole job, and at startup it brings
	// the working tree into shape ahead of the first scan.
	syncEngine, err := gitsync.New(gitsync.Config{
		Enabled:       cfg.Sync.Enabled,
		Root:          cfg.Catalog.Root,
		Mode:          gitsync.ModeForRole(cfg.Sync.Role),
		RemoteURL:     cfg.Sync.RemoteURL,
		Branch:        cfg.Sync.Branch,
		ParentDir:     cfg.Sync.ParentDir,
		CommitMessage: cfg.Sync.CommitMessage,
		AuthorName:    cfg.Sync.AuthorName,
		AuthorEmail:   cfg.Sync.AuthorEmail,
	})
	if err != nil {
		return fmt.Errorf("creating sync engine: %w", err)
	}
	syncEngine.SetLogger(log)

	// One-shot operator modes run before any long-lived component starts
	if opts.repair {
		return reportResult(log, "repair", syncEngine.Repair(ctx))
	}
	if opts.push {
		return reportResult(log, "push", syncEngine.Push(ctx))
	}

	// Bring the catalog working tree up to date
	if cfg.Sync.Enabled {
		if res := syncEngine.EnsureHealthy(ctx); res.OK {
			log.Info("catalog sync ready", "code", res.Code, "message", res.Message)
		} else {
			// Degraded sync is not fatal; the engine still serves
			// whatever documents are on disk.
			log.Warn("catalog sync degraded", "code", res.Code, "message", res.Message)
		}
	} else {
		log.Info("catalog sync disabled")
	}

	// Open database for the audit trail (optional)
	var db *database.DB
	var auditor catalog.Auditor
	if cfg.Audit.Enabled {
		db, err = database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		// Run migrations
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		auditor = audit.NewTrail(audit.NewSQLiteRepository(db.DB), audit.SourceEngine, log)
	} else {
		log.Info("audit trail disabled")
	}

	// Initialise catalog engine
	catalogEngine, err := catalog.New(catalog.Config{
		Root:        cfg.Catalog.Root,
		CacheTTL:    cfg.GetCacheTTL(),
		ScanWorkers: cfg.Catalog.Scan.Workers,
		Agent:       "patchbay-core",
	})
	if err != nil {
		return fmt.Errorf("creating catalog engine: %w", err)
	}
	catalogEngine.SetLogger(log)
	if auditor != nil {
		catalogEngine.SetAuditor(auditor)
	}

	if initErr := catalogEngine.Init(ctx); initErr != nil {
		return fmt.Errorf("initialising catalog: %w", initErr)
	}
	defer func() {
		log.Info("closing catalog engine")
		if closeErr := catalogEngine.Close(); closeErr != nil {
			log.Error("error closing catalog engine", "error", closeErr)
		}
	}()

	stats := catalogEngine.Stats()
	log.Info("catalog ready",
		"root", catalogEngine.Root(),
		"manufacturers", stats.Manufacturers,
		"devices", stats.Devices,
		"docs_parsed", stats.DocsParsed,
		"docs_skipped", stats.DocsSkipped,
	)

	// Start the filesystem watcher (optional)
	if cfg.Catalog.Watch.Enabled {
		if watchErr := catalogEngine.Watch(ctx, cfg.GetWatchDebounce()); watchErr != nil {
			return fmt.Errorf("starting catalog watcher: %w", watchErr)
		}
		log.Info("catalog watcher started", "debounce", cfg.GetWatchDebounce().String())
	} else {
		log.Info("catalog watcher disabled")
	}

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. Catalog engine (stops the watcher)
	// 2. Database (if audit enabled)

	log.Info("Patchbay Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PATCHBAY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PATCHBAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// reportResult logs a one-shot sync outcome and maps a degraded result
// to a process error, so scripted callers get a useful exit code.
func reportResult(log *logging.Logger, op string, res gitsync.Result) error {
	if !res.OK {
		log.Error("catalog "+op+" failed", "code", res.Code, "message", res.Message)
		return fmt.Errorf("%s: %s", op, res.Message)
	}
	if res.Rung > 0 {
		log.Info("catalog "+op+" complete", "code", res.Code, "rung", res.Rung, "message", res.Message)
	} else {
		log.Info("catalog "+op+" complete", "code", res.Code, "message", res.Message)
	}
	return nil
}

// healthCheck verifies infrastructure connections are healthy.
// db is nil when the audit trail is disabled; there is nothing to check then.
func healthCheck(ctx context.Context, db *database.DB) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	return nil
}
