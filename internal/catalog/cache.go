package catalog

import (
	"os"
	"sync"
	"time"
)

// fileReader loads raw bytes for the cache. Injectable for tests; the
// default is os.ReadFile.
type fileReader func(path string) ([]byte, error)

type cacheEntry struct {
	loadedAt time.Time
	doc      *Document
}

// DocumentCache memoises parsed documents by absolute path with a TTL.
//
// Get never fails: unreadable or malformed files yield an empty document
// and a logged warning, and the empty result is cached so a broken file
// does not hammer the disk until its entry expires or the cache is
// cleared. Mutation code must not read through the cache; it loads from
// disk directly so writes never base on stale content.
//
// Clear is the only invalidation. Callers must treat returned documents
// as read-only; the pointer is shared between callers until the entry
// expires.
type DocumentCache struct {
	ttl    time.Duration
	read   fileReader
	logger Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewDocumentCache creates a cache with the given default TTL. A zero or
// negative TTL disables caching: every Get reads from disk.
func NewDocumentCache(ttl time.Duration, logger Logger) *DocumentCache {
	if logger == nil {
		logger = &noopLogger{}
	}
	return &DocumentCache{
		ttl:     ttl,
		read:    os.ReadFile,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the document at path, served from cache while the entry is
// within the default TTL.
func (c *DocumentCache) Get(path string) *Document {
	return c.GetWithTTL(path, c.ttl)
}

// GetWithTTL is Get with a per-call TTL override. A zero or negative TTL
// forces a disk read.
func (c *DocumentCache) GetWithTTL(path string, ttl time.Duration) *Document {
	if ttl > 0 {
		c.mu.RLock()
		entry, ok := c.entries[path]
		c.mu.RUnlock()
		if ok && c.now().Sub(entry.loadedAt) < ttl {
			return entry.doc
		}
	}

	doc := c.load(path)

	c.mu.Lock()
	c.entries[path] = cacheEntry{loadedAt: c.now(), doc: doc}
	c.mu.Unlock()

	return doc
}

// load reads and parses path, degrading to an empty document on failure.
func (c *DocumentCache) load(path string) *Document {
	data, err := c.read(path)
	if err != nil {
		c.logger.Warn("document read failed, serving empty document", "path", path, "error", err)
		return &Document{}
	}
	doc, err := parseDocument(data)
	if err != nil {
		c.logger.Warn("document parse failed, serving empty document", "path", path, "error", err)
		return &Document{}
	}
	return doc
}

// Clear drops every cached entry. Mutations call this after a write so
// subsequent reads observe fresh content.
func (c *DocumentCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len reports the number of cached entries, expired or not.
func (c *DocumentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
