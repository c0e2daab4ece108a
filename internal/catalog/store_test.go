package catalog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDocumentStore_WriteReadRoundTrip(t *testing.T) {
	store := newDocumentStore(nil)
	path := filepath.Join(t.TempDir(), "moog", "sub_37", "moog_sub_37.json")

	doc := &Document{
		Metadata: newDocumentMeta("patchbay"),
		DeviceInfo: &DeviceInfo{
			Name:         "Sub 37",
			Manufacturer: "moog",
			MIDIChannels: map[string]int{"main": 3},
		},
	}
	if err := store.write(path, doc); err != nil {
		t.Fatalf("write() error = %v", err)
	}

	got, err := store.read(path)
	if err != nil {
		t.Fatalf("read() error = %v", err)
	}
	if got.DeviceInfo == nil || got.DeviceInfo.Name != "Sub 37" {
		t.Errorf("read() device = %+v, want Sub 37", got.DeviceInfo)
	}
	if got.DeviceInfo.MIDIChannels["main"] != 3 {
		t.Errorf("midi channel = %d, want 3", got.DeviceInfo.MIDIChannels["main"])
	}
}

func TestDocumentStore_WritesPrettyPrintedJSON(t *testing.T) {
	store := newDocumentStore(nil)
	path := filepath.Join(t.TempDir(), "doc.json")

	if err := store.write(path, &Document{DeviceInfo: &DeviceInfo{Name: "Sub 37"}}); err != nil {
		t.Fatalf("write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("{\n  \"")) {
		t.Errorf("document not two-space indented: %q", data[:min(len(data), 16)])
	}
	if !bytes.HasSuffix(data, []byte("}\n")) {
		t.Error("document missing trailing newline")
	}
}

func TestDocumentStore_ReadMissingFile(t *testing.T) {
	store := newDocumentStore(nil)
	if _, err := store.read(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("read() expected error for a missing file, got nil")
	}
}

func TestParseDocument(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"device form", `{"device_info": {"name": "Sub 37"}}`, false},
		{"community form", `{"presets": []}`, false},
		{"empty object", `{}`, false},
		{"invalid json", `{broken`, true},
		{"device form without name", `{"device_info": {"manufacturer": "moog"}}`, true},
		{"collections without device info", `{"preset_collections": {}}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseDocument([]byte(tt.data))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDocument) {
					t.Errorf("parseDocument() error = %v, want ErrInvalidDocument", err)
				}
				return
			}
			if err != nil {
				t.Errorf("parseDocument() error = %v", err)
			}
		})
	}
}

func TestStampModified(t *testing.T) {
	t.Run("adds metadata to legacy documents", func(t *testing.T) {
		doc := &Document{DeviceInfo: &DeviceInfo{Name: "Sub 37"}}
		stampModified(doc, "patchbay")

		meta := doc.Metadata
		if meta == nil {
			t.Fatal("metadata block not created")
		}
		if meta.SchemaVersion != SchemaVersion {
			t.Errorf("schema_version = %d, want %d", meta.SchemaVersion, SchemaVersion)
		}
		if meta.CreatedBy != "patchbay" || meta.ModifiedBy != "patchbay" {
			t.Errorf("agents = %q/%q, want patchbay", meta.CreatedBy, meta.ModifiedBy)
		}
		if meta.FileRevision == "" || meta.ModifiedAt == "" {
			t.Error("revision or modification time not stamped")
		}
	})

	t.Run("refreshes revision and keeps provenance", func(t *testing.T) {
		doc := &Document{Metadata: &DocumentMeta{
			SchemaVersion: SchemaVersion,
			FileRevision:  "original",
			CreatedBy:     "importer",
			CreatedAt:     "2024-01-01T00:00:00Z",
		}}
		stampModified(doc, "patchbay")

		meta := doc.Metadata
		if meta.FileRevision == "original" {
			t.Error("file revision not refreshed")
		}
		if meta.CreatedBy != "importer" || meta.CreatedAt != "2024-01-01T00:00:00Z" {
			t.Errorf("creation provenance changed: %q at %q", meta.CreatedBy, meta.CreatedAt)
		}
		if meta.ModifiedBy != "patchbay" {
			t.Errorf("modified_by = %q, want patchbay", meta.ModifiedBy)
		}
	})

	t.Run("repairs a zero schema version", func(t *testing.T) {
		doc := &Document{Metadata: &DocumentMeta{FileRevision: "r"}}
		stampModified(doc, "patchbay")
		if doc.Metadata.SchemaVersion != SchemaVersion {
			t.Errorf("schema_version = %d, want %d", doc.Metadata.SchemaVersion, SchemaVersion)
		}
	})
}
