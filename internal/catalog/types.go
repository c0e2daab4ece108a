package catalog

import "time"

// SchemaVersion is stamped into the _metadata block of every document
// written by this engine.
const SchemaVersion = 2

// Document is the on-disk JSON schema for catalog files.
//
// Two forms share this shape. Device documents carry _metadata,
// device_info and preset_collections. Community documents (files under a
// manufacturer's community directory) carry a bare presets array.
type Document struct {
	Metadata          *DocumentMeta                `json:"_metadata,omitempty"`
	DeviceInfo        *DeviceInfo                  `json:"device_info,omitempty"`
	Capabilities      map[string]any               `json:"capabilities,omitempty"`
	PresetCollections map[string]*PresetCollection `json:"preset_collections,omitempty"`

	// Presets holds the community document form: {"presets": [...]}.
	Presets []*Preset `json:"presets,omitempty"`
}

// DocumentMeta is the _metadata block of a device document.
//
// Timestamps are kept as strings so documents written by other tools with
// looser formats still parse; this engine always stamps RFC 3339 UTC.
type DocumentMeta struct {
	SchemaVersion int            `json:"schema_version"`
	FileRevision  string         `json:"file_revision"`
	CreatedBy     string         `json:"created_by,omitempty"`
	ModifiedBy    string         `json:"modified_by,omitempty"`
	CreatedAt     string         `json:"created_at,omitempty"`
	ModifiedAt    string         `json:"modified_at,omitempty"`
	MigrationPath []string       `json:"migration_path,omitempty"`
	Compatibility map[string]any `json:"compatibility,omitempty"`
}

// DeviceInfo describes the hardware instrument a document belongs to.
// Name is required; a parsed device document without it is invalid.
type DeviceInfo struct {
	Name           string            `json:"name"`
	Version        string            `json:"version,omitempty"`
	Manufacturer   string            `json:"manufacturer,omitempty"`
	ManufacturerID int               `json:"manufacturer_id,omitempty"`
	DeviceID       int               `json:"device_id,omitempty"`
	Ports          int               `json:"ports,omitempty"`
	MIDIChannels   map[string]int    `json:"midi_channels,omitempty"`
	MIDIPorts      map[string]string `json:"midi_ports,omitempty"`
}

// PresetCollection is a named group of presets within a device document.
type PresetCollection struct {
	Metadata CollectionMeta `json:"metadata"`
	Presets  []*Preset      `json:"presets"`

	// PresetMetadata carries per-preset bookkeeping keyed by preset_id.
	PresetMetadata map[string]*PresetMeta `json:"preset_metadata,omitempty"`
}

// CollectionMeta is the metadata block of a preset collection.
type CollectionMeta struct {
	Name              string   `json:"name"`
	Version           string   `json:"version,omitempty"`
	Revision          int      `json:"revision"`
	Author            string   `json:"author,omitempty"`
	Description       string   `json:"description,omitempty"`
	ReadOnly          bool     `json:"readonly"`
	PresetCount       int      `json:"preset_count"`
	ParentCollections []string `json:"parent_collections,omitempty"`
	SyncStatus        string   `json:"sync_status,omitempty"`
	CreatedAt         string   `json:"created_at,omitempty"`
	ModifiedAt        string   `json:"modified_at,omitempty"`
}

// Preset is a single program entry on a hardware instrument.
type Preset struct {
	// PresetID is derived once at creation (lower-cased name plus
	// positional ordinal) and never regenerated, so external references
	// survive renames.
	PresetID   string `json:"preset_id"`
	PresetName string `json:"preset_name"`
	Category   string `json:"category,omitempty"`

	// CC0 is the bank select value; null when the device needs none.
	CC0 *int `json:"cc_0"`
	PGM int  `json:"pgm"`

	Characters []string `json:"characters,omitempty"`
	Command    string   `json:"command,omitempty"`
}

// PresetMeta is per-preset bookkeeping stored alongside the presets array.
type PresetMeta struct {
	CreatedAt  string `json:"created_at,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
}

// Device is an index entry built by the scanner. It carries the document
// location plus the fields read accessors serve without a document load.
type Device struct {
	Name             string            `json:"name"`
	Manufacturer     string            `json:"manufacturer"`
	Path             string            `json:"path"`
	MIDIPorts        map[string]string `json:"midi_ports,omitempty"`
	MIDIChannels     map[string]int    `json:"midi_channels,omitempty"`
	CommunityFolders []string          `json:"community_folders,omitempty"`
}

// Snapshot is one wholesale build of the catalog index. The engine swaps
// the whole snapshot on rescan; entries are never patched in place.
type Snapshot struct {
	// Devices maps globally unique device names to index entries.
	// On a name collision the device merged last wins.
	Devices map[string]*Device

	// Manufacturers lists manufacturer directory names, sorted.
	Manufacturers []string

	// ByManufacturer maps manufacturer names to their devices.
	ByManufacturer map[string][]*Device

	// DocsParsed and DocsSkipped count scan outcomes for Stats.
	DocsParsed  int
	DocsSkipped int
}

// Stats reports engine counters for health endpoints and logging.
type Stats struct {
	Manufacturers    int           `json:"manufacturers"`
	Devices          int           `json:"devices"`
	DocsParsed       int           `json:"docs_parsed"`
	DocsSkipped      int           `json:"docs_skipped"`
	CachedDocuments  int           `json:"cached_documents"`
	LastScanAt       time.Time     `json:"last_scan_at"`
	LastScanDuration time.Duration `json:"last_scan_duration"`
}

// IsDevice reports whether the document declares a usable device name.
func (d *Document) IsDevice() bool {
	return d != nil && d.DeviceInfo != nil && d.DeviceInfo.Name != ""
}

// Collection returns the named collection, or nil if absent.
func (d *Document) Collection(name string) *PresetCollection {
	if d == nil || d.PresetCollections == nil {
		return nil
	}
	return d.PresetCollections[name]
}

// DeepCopy creates a complete independent copy of the Device.
// Map and slice fields are cloned so modifications to the copy do not
// affect the index. This is essential for snapshot isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d // Shallow copy of value fields

	if d.MIDIPorts != nil {
		cpy.MIDIPorts = make(map[string]string, len(d.MIDIPorts))
		for k, v := range d.MIDIPorts {
			cpy.MIDIPorts[k] = v
		}
	}

	if d.MIDIChannels != nil {
		cpy.MIDIChannels = make(map[string]int, len(d.MIDIChannels))
		for k, v := range d.MIDIChannels {
			cpy.MIDIChannels[k] = v
		}
	}

	if d.CommunityFolders != nil {
		cpy.CommunityFolders = make([]string, len(d.CommunityFolders))
		copy(cpy.CommunityFolders, d.CommunityFolders)
	}

	return &cpy
}

// DeepCopy creates a complete independent copy of the Preset.
func (p *Preset) DeepCopy() *Preset {
	if p == nil {
		return nil
	}

	cpy := *p

	if p.CC0 != nil {
		v := *p.CC0
		cpy.CC0 = &v
	}

	if p.Characters != nil {
		cpy.Characters = make([]string, len(p.Characters))
		copy(cpy.Characters, p.Characters)
	}

	return &cpy
}

// copyPresets deep-copies a preset slice for handing to callers.
func copyPresets(presets []*Preset) []*Preset {
	if presets == nil {
		return nil
	}
	out := make([]*Preset, len(presets))
	for i, p := range presets {
		out[i] = p.DeepCopy()
	}
	return out
}
