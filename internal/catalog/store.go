package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
)

// documentStore performs document IO for mutations. Reads here always hit
// the filesystem; the read-path cache is bypassed so writers never base a
// modification on stale content.
type documentStore struct {
	logger Logger

	// locks serialises writers per document path. Advisory only: it
	// protects against concurrent mutations inside this process, not
	// against other processes editing the files.
	locks sync.Map // string -> *sync.Mutex
}

func newDocumentStore(logger Logger) *documentStore {
	if logger == nil {
		logger = &noopLogger{}
	}
	return &documentStore{logger: logger}
}

// lock acquires the advisory mutex for path and returns its release func.
func (s *documentStore) lock(path string) func() {
	v, _ := s.locks.LoadOrStore(path, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// read loads and parses the document at path directly from disk.
func (s *documentStore) read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", path, err)
	}
	doc, err := parseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parsing document %s: %w", path, err)
	}
	return doc, nil
}

// write marshals the document pretty-printed and replaces the file
// atomically, creating parent directories as needed. A partially written
// file is never observable: the content lands in a temp file first and is
// renamed into place.
func (s *documentStore) write(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document %s: %w", path, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating document directory: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing document %s: %w", path, err)
	}

	s.logger.Debug("document written", "path", path, "bytes", len(data))
	return nil
}

// parseDocument decodes raw JSON into a Document and validates the schema.
// A device form (any document declaring device_info or preset_collections)
// must carry a non-empty device_info.name.
func parseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, err)
	}

	if doc.DeviceInfo != nil || doc.PresetCollections != nil {
		if doc.DeviceInfo == nil || doc.DeviceInfo.Name == "" {
			return nil, fmt.Errorf("%w: device_info.name is required", ErrInvalidDocument)
		}
	}

	return &doc, nil
}

// nowStamp returns the timestamp format written into document metadata.
func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// stampModified refreshes the document metadata for a write: a fresh file
// revision, the modification time, and the writing agent. A document that
// predates metadata gains a block on first modification.
func stampModified(doc *Document, agent string) {
	now := nowStamp()
	if doc.Metadata == nil {
		doc.Metadata = &DocumentMeta{
			SchemaVersion: SchemaVersion,
			CreatedBy:     agent,
			CreatedAt:     now,
		}
	}
	doc.Metadata.FileRevision = uuid.NewString()
	doc.Metadata.ModifiedBy = agent
	doc.Metadata.ModifiedAt = now
	if doc.Metadata.SchemaVersion == 0 {
		doc.Metadata.SchemaVersion = SchemaVersion
	}
}

// newDocumentMeta builds the metadata block for a freshly created document.
func newDocumentMeta(agent string) *DocumentMeta {
	now := nowStamp()
	return &DocumentMeta{
		SchemaVersion: SchemaVersion,
		FileRevision:  uuid.NewString(),
		CreatedBy:     agent,
		ModifiedBy:    agent,
		CreatedAt:     now,
		ModifiedAt:    now,
	}
}
