package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Logger interface for structured logging.
// Avoids forcing a specific logging implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is used when no logger is set.
type noopLogger struct{}

func (n *noopLogger) Debug(msg string, args ...any) {}
func (n *noopLogger) Info(msg string, args ...any)  {}
func (n *noopLogger) Warn(msg string, args ...any)  {}
func (n *noopLogger) Error(msg string, args ...any) {}

// Auditor receives a record of every successful mutation. Implementations
// must be best-effort; the engine never checks for a result.
type Auditor interface {
	Record(ctx context.Context, action, entityType, entityID string, details map[string]any)
}

// noopAuditor is used when no audit sink is set.
type noopAuditor struct{}

func (n *noopAuditor) Record(ctx context.Context, action, entityType, entityID string, details map[string]any) {
}

// Config carries the engine's construction parameters.
type Config struct {
	// Root is the catalog directory. Required.
	Root string

	// CacheTTL is the document cache lifetime. Zero disables caching.
	CacheTTL time.Duration

	// ScanWorkers overrides the scan pool width. Zero selects
	// automatically from the CPU count.
	ScanWorkers int

	// Agent is stamped into created_by and modified_by on writes.
	Agent string
}

// Engine owns one preset catalog rooted at a directory tree of JSON
// documents. All state lives on the instance, so multiple engines over
// different roots coexist in one process.
//
// Read accessors serve from the in-memory index plus the document cache
// and never fail; unknown names yield empty results. Mutations validate,
// write atomically, then invalidate the cache, and structural changes
// rebuild the index wholesale.
type Engine struct {
	root    string
	agent   string
	cache   *DocumentCache
	store   *documentStore
	scanner *Scanner
	logger  Logger
	audit   Auditor
	watcher *Watcher

	mu               sync.RWMutex
	snap             *Snapshot
	lastScanAt       time.Time
	lastScanDuration time.Duration
}

// New creates an engine for the catalog at cfg.Root. The directory does
// not need to exist yet; Init creates it. Call Init before serving reads.
func New(cfg Config) (*Engine, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("catalog root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving catalog root: %w", err)
	}

	agent := cfg.Agent
	if agent == "" {
		agent = "patchbay"
	}

	logger := Logger(&noopLogger{})
	cache := NewDocumentCache(cfg.CacheTTL, logger)

	return &Engine{
		root:    root,
		agent:   agent,
		cache:   cache,
		store:   newDocumentStore(logger),
		scanner: newScanner(root, cache, cfg.ScanWorkers, logger),
		logger:  logger,
		audit:   &noopAuditor{},
	}, nil
}

// SetLogger configures structured logging for the engine and its
// components. Call before Init.
func (e *Engine) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	e.logger = logger
	e.cache.logger = logger
	e.store.logger = logger
	e.scanner.logger = logger
}

// SetAuditor configures the mutation audit sink. Call before Init.
func (e *Engine) SetAuditor(a Auditor) {
	if a != nil {
		e.audit = a
	}
}

// Root returns the absolute catalog root directory.
func (e *Engine) Root() string {
	return e.root
}

// Init creates the catalog root if needed and runs the first scan.
func (e *Engine) Init(ctx context.Context) error {
	if err := os.MkdirAll(e.root, 0o750); err != nil {
		return fmt.Errorf("creating catalog root: %w", err)
	}
	return e.Rescan(ctx)
}

// Rescan rebuilds the index from disk and swaps it in wholesale. The
// previous snapshot keeps serving reads until the swap. The returned
// error is only ever the context's; scan problems degrade to logged
// skips.
func (e *Engine) Rescan(ctx context.Context) error {
	started := time.Now()
	snap, err := e.scanner.Scan(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.snap = snap
	e.lastScanAt = time.Now().UTC()
	e.lastScanDuration = time.Since(started)
	e.mu.Unlock()

	e.logger.Info("catalog scan complete",
		"manufacturers", len(snap.Manufacturers),
		"devices", len(snap.Devices),
		"parsed", snap.DocsParsed,
		"skipped", snap.DocsSkipped,
		"duration", time.Since(started).Round(time.Millisecond).String())
	return nil
}

// Close stops the filesystem watcher if one is running.
func (e *Engine) Close() error {
	if e.watcher != nil {
		return e.watcher.Stop()
	}
	return nil
}

// snapshot returns the current index, which may be nil before Init.
func (e *Engine) snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// lookupDevice resolves a device name against the index. The returned
// entry is shared with the snapshot and must not be modified.
func (e *Engine) lookupDevice(name string) (*Device, error) {
	snap := e.snapshot()
	if snap == nil {
		return nil, ErrNotInitialised
	}
	dev, ok := snap.Devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	return dev, nil
}

// Manufacturers returns the sorted manufacturer names. Never fails; an
// unscanned engine yields an empty slice.
func (e *Engine) Manufacturers() []string {
	snap := e.snapshot()
	if snap == nil {
		return []string{}
	}
	out := make([]string, len(snap.Manufacturers))
	copy(out, snap.Manufacturers)
	return out
}

// Devices returns every indexed device keyed by name. Entries are deep
// copies; callers may modify them freely.
func (e *Engine) Devices() map[string]*Device {
	snap := e.snapshot()
	out := make(map[string]*Device)
	if snap == nil {
		return out
	}
	for name, dev := range snap.Devices {
		out[name] = dev.DeepCopy()
	}
	return out
}

// DevicesFor returns the devices of one manufacturer, sorted by name.
// Unknown manufacturers yield an empty slice.
func (e *Engine) DevicesFor(manufacturer string) []*Device {
	snap := e.snapshot()
	if snap == nil {
		return []*Device{}
	}
	devices := snap.ByManufacturer[manufacturer]
	out := make([]*Device, 0, len(devices))
	for _, dev := range devices {
		out = append(out, dev.DeepCopy())
	}
	return out
}

// DeviceInfo returns the index entry for a device name. The boolean
// reports whether the device exists.
func (e *Engine) DeviceInfo(name string) (*Device, bool) {
	snap := e.snapshot()
	if snap == nil {
		return nil, false
	}
	dev, ok := snap.Devices[name]
	if !ok {
		return nil, false
	}
	return dev.DeepCopy(), true
}

// CommunityFolders returns the community folder names available to a
// device. Unknown devices yield an empty slice.
func (e *Engine) CommunityFolders(device string) []string {
	dev, err := e.lookupDevice(device)
	if err != nil {
		return []string{}
	}
	out := make([]string, len(dev.CommunityFolders))
	copy(out, dev.CommunityFolders)
	return out
}

// PresetsByDevice returns every preset collection of a device, keyed by
// collection name. Unknown devices yield an empty map.
func (e *Engine) PresetsByDevice(device string) map[string][]*Preset {
	out := make(map[string][]*Preset)
	dev, err := e.lookupDevice(device)
	if err != nil {
		return out
	}

	doc := e.cache.Get(dev.Path)
	for name, collection := range doc.PresetCollections {
		if collection == nil {
			continue
		}
		out[name] = copyPresets(collection.Presets)
	}
	return out
}

// PresetsByManufacturer returns the presets of every device of one
// manufacturer, keyed by device name then collection name.
func (e *Engine) PresetsByManufacturer(manufacturer string) map[string]map[string][]*Preset {
	out := make(map[string]map[string][]*Preset)
	snap := e.snapshot()
	if snap == nil {
		return out
	}
	for _, dev := range snap.ByManufacturer[manufacturer] {
		out[dev.Name] = e.PresetsByDevice(dev.Name)
	}
	return out
}

// CommunityPresets returns the presets of one community folder for a
// device's manufacturer. Unknown devices or folders yield an empty slice.
func (e *Engine) CommunityPresets(device, folder string) []*Preset {
	dev, err := e.lookupDevice(device)
	if err != nil {
		return []*Preset{}
	}
	safe, err := SanitizeName(folder)
	if err != nil {
		return []*Preset{}
	}
	path, err := joinUnder(e.root, dev.Manufacturer, communityDirName, safe+".json")
	if err != nil {
		return []*Preset{}
	}

	doc := e.cache.Get(path)
	if doc.Presets == nil {
		return []*Preset{}
	}
	return copyPresets(doc.Presets)
}

// PresetByName finds a preset by display name across a device's
// collections, searched in sorted collection order.
func (e *Engine) PresetByName(device, name string) (*Preset, bool) {
	dev, err := e.lookupDevice(device)
	if err != nil {
		return nil, false
	}

	doc := e.cache.Get(dev.Path)
	collections := make([]string, 0, len(doc.PresetCollections))
	for cname := range doc.PresetCollections {
		collections = append(collections, cname)
	}
	sort.Strings(collections)

	for _, cname := range collections {
		collection := doc.PresetCollections[cname]
		if collection == nil {
			continue
		}
		for _, p := range collection.Presets {
			if p != nil && p.PresetName == name {
				return p.DeepCopy(), true
			}
		}
	}
	return nil, false
}

// Stats reports index and cache counters for health output.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := Stats{
		CachedDocuments:  e.cache.Len(),
		LastScanAt:       e.lastScanAt,
		LastScanDuration: e.lastScanDuration,
	}
	if e.snap != nil {
		stats.Manufacturers = len(e.snap.Manufacturers)
		stats.Devices = len(e.snap.Devices)
		stats.DocsParsed = e.snap.DocsParsed
		stats.DocsSkipped = e.snap.DocsSkipped
	}
	return stats
}
