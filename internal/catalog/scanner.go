package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	// communityDirName is the per-manufacturer directory holding shared
	// preset files. It is excluded from the device walk.
	communityDirName = "community"

	// maxScanWidth caps the scan worker pool regardless of CPU count.
	maxScanWidth = 32
)

// Scanner walks the catalog root and builds index snapshots.
//
// The walk runs two levels of goroutines, manufacturers on the outside
// and document files on the inside, with one shared weighted semaphore
// bounding disk reads across both levels. Unreadable or invalid documents
// are logged and skipped; a scan itself never fails except by context
// cancellation. If the concurrent walk breaks, the scan falls back to a
// plain sequential walk over the same helpers.
type Scanner struct {
	root    string
	cache   *DocumentCache
	workers int
	logger  Logger
}

func newScanner(root string, cache *DocumentCache, workers int, logger Logger) *Scanner {
	if logger == nil {
		logger = &noopLogger{}
	}
	return &Scanner{root: root, cache: cache, workers: workers, logger: logger}
}

// width resolves the worker pool size: the configured value when set,
// otherwise four per CPU capped at maxScanWidth.
func (s *Scanner) width() int {
	if s.workers > 0 {
		return s.workers
	}
	return min(maxScanWidth, 4*runtime.NumCPU())
}

// Scan builds a fresh snapshot of the catalog. Documents are read through
// the cache; mutation paths clear it before rescanning so the walk
// observes fresh content. The returned error is only ever the context's.
func (s *Scanner) Scan(ctx context.Context) (*Snapshot, error) {
	snap, err := s.scanConcurrent(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("concurrent scan failed, falling back to sequential walk", "error", err)
		snap = s.scanSequential(ctx)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return snap, nil
}

// manufacturerResult is the per-manufacturer output of a scan worker.
type manufacturerResult struct {
	name      string
	devices   []*Device
	community []string
	parsed    int
	skipped   int
}

func (s *Scanner) scanConcurrent(ctx context.Context) (*Snapshot, error) {
	names, err := s.listManufacturers()
	if err != nil {
		return nil, err
	}

	sem := semaphore.NewWeighted(int64(s.width()))
	g, gctx := errgroup.WithContext(ctx)
	results := make([]*manufacturerResult, len(names))

	for i, name := range names {
		i, name := i, name
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("scan worker panic for %s: %v", name, r)
				}
			}()
			res, err := s.scanManufacturer(gctx, sem, name)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mergeResults(names, results), nil
}

// scanManufacturer walks one manufacturer directory: inner goroutines
// index each document file, then community folders are resolved and
// attached to every device found. The semaphore is never held across a
// nested acquire.
func (s *Scanner) scanManufacturer(ctx context.Context, sem *semaphore.Weighted, name string) (*manufacturerResult, error) {
	dir := filepath.Join(s.root, name)

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	paths, err := s.collectDocumentPaths(dir)
	sem.Release(1)
	if err != nil {
		s.logger.Warn("manufacturer directory unreadable, skipping", "manufacturer", name, "error", err)
		return &manufacturerResult{name: name, skipped: 1}, nil
	}

	res := &manufacturerResult{name: name}
	devices := make([]*Device, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("scan worker panic for %s: %v", path, r)
				}
			}()
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			devices[i] = s.indexDocument(path, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	res.community = s.listCommunityFolders(dir)
	sem.Release(1)

	for _, dev := range devices {
		if dev == nil {
			res.skipped++
			continue
		}
		res.parsed++
		dev.CommunityFolders = append([]string(nil), res.community...)
		res.devices = append(res.devices, dev)
	}
	sort.Slice(res.devices, func(a, b int) bool { return res.devices[a].Name < res.devices[b].Name })

	return res, nil
}

func (s *Scanner) scanSequential(ctx context.Context) *Snapshot {
	names, err := s.listManufacturers()
	if err != nil {
		s.logger.Error("catalog root unreadable", "root", s.root, "error", err)
		return emptySnapshot()
	}

	results := make([]*manufacturerResult, 0, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		dir := filepath.Join(s.root, name)
		res := &manufacturerResult{name: name}

		paths, err := s.collectDocumentPaths(dir)
		if err != nil {
			s.logger.Warn("manufacturer directory unreadable, skipping", "manufacturer", name, "error", err)
			res.skipped++
			results = append(results, res)
			continue
		}

		res.community = s.listCommunityFolders(dir)
		for _, path := range paths {
			dev := s.indexDocument(path, name)
			if dev == nil {
				res.skipped++
				continue
			}
			res.parsed++
			dev.CommunityFolders = append([]string(nil), res.community...)
			res.devices = append(res.devices, dev)
		}
		sort.Slice(res.devices, func(a, b int) bool { return res.devices[a].Name < res.devices[b].Name })
		results = append(results, res)
	}

	return mergeResults(names, results)
}

// listManufacturers returns the manufacturer directory names under the
// catalog root, sorted, excluding hidden entries and plain files.
func (s *Scanner) listManufacturers() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading catalog root %s: %w", s.root, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// collectDocumentPaths gathers every device document path under one
// manufacturer: JSON files directly in the directory plus JSON files one
// level down in device directories. The community directory and hidden
// entries are excluded.
func (s *Scanner) collectDocumentPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() {
			if name == communityDirName {
				continue
			}
			sub, err := os.ReadDir(filepath.Join(dir, name))
			if err != nil {
				s.logger.Warn("device directory unreadable, skipping", "dir", filepath.Join(dir, name), "error", err)
				continue
			}
			for _, f := range sub {
				if f.IsDir() || strings.HasPrefix(f.Name(), ".") || !strings.HasSuffix(f.Name(), ".json") {
					continue
				}
				paths = append(paths, filepath.Join(dir, name, f.Name()))
			}
			continue
		}
		if strings.HasSuffix(name, ".json") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths, nil
}

// indexDocument loads one document and builds its index entry. Returns
// nil when the file does not yield a usable device; the cache has already
// logged the underlying read or parse failure.
func (s *Scanner) indexDocument(path, manufacturer string) *Device {
	doc := s.cache.Get(path)
	if !doc.IsDevice() {
		s.logger.Warn("document skipped, no device name", "path", path, "manufacturer", manufacturer)
		return nil
	}

	info := doc.DeviceInfo
	dev := &Device{
		Name:         info.Name,
		Manufacturer: manufacturer, // directory provenance wins over the document field
		Path:         path,
	}
	if info.MIDIPorts != nil {
		dev.MIDIPorts = make(map[string]string, len(info.MIDIPorts))
		for k, v := range info.MIDIPorts {
			dev.MIDIPorts[k] = v
		}
	}
	if info.MIDIChannels != nil {
		dev.MIDIChannels = make(map[string]int, len(info.MIDIChannels))
		for k, v := range info.MIDIChannels {
			dev.MIDIChannels[k] = v
		}
	}
	return dev
}

// listCommunityFolders returns the community file basenames (extension
// stripped) for one manufacturer directory. A missing community directory
// is normal and yields nil.
func (s *Scanner) listCommunityFolders(dir string) []string {
	entries, err := os.ReadDir(filepath.Join(dir, communityDirName))
	if err != nil {
		return nil
	}
	var folders []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		folders = append(folders, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(folders)
	return folders
}

// mergeResults folds per-manufacturer results into one snapshot in
// manufacturer order, so the final contents are deterministic regardless
// of worker scheduling. On duplicate device names the last merge wins.
func mergeResults(names []string, results []*manufacturerResult) *Snapshot {
	snap := emptySnapshot()
	snap.Manufacturers = append(snap.Manufacturers, names...)

	for _, res := range results {
		if res == nil {
			continue
		}
		snap.DocsParsed += res.parsed
		snap.DocsSkipped += res.skipped
		snap.ByManufacturer[res.name] = res.devices
		for _, dev := range res.devices {
			snap.Devices[dev.Name] = dev
		}
	}
	return snap
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Devices:        make(map[string]*Device),
		Manufacturers:  []string{},
		ByManufacturer: make(map[string][]*Device),
	}
}
