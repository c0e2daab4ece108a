package catalog

import (
	"context"
	"fmt"
	"strings"
)

// PresetRequest carries the fields of a preset create.
type PresetRequest struct {
	PresetName string
	Category   string

	// CC0 is the bank select value; nil means the device takes none.
	CC0 *int
	PGM int

	Characters []string
	Command    string
}

// PresetUpdate is a partial update. Nil pointer fields keep the current
// value; SetCC0 applies CC0 even when it is nil, clearing the bank
// select. A non-empty PresetName renames the preset (its preset_id is
// never regenerated).
type PresetUpdate struct {
	PresetName string
	Category   *string
	CC0        *int
	SetCC0     bool
	PGM        *int
	Characters []string
	Command    *string
}

// CreatePreset appends a preset to a device's collection and rewrites
// the backing document. Returns the written document path.
//
// The collection is created on the fly when absent, so a fresh device
// accepts presets without an explicit CreateCollection step. The
// preset_id is derived here, once, from the name and its position;
// updates never regenerate it. Duplicate preset names within the
// collection yield ErrPresetExists.
func (e *Engine) CreatePreset(ctx context.Context, device, collection string, req PresetRequest) (string, error) {
	name := strings.TrimSpace(req.PresetName)
	if name == "" {
		return "", fmt.Errorf("%w: preset_name is required", ErrInvalidName)
	}
	dev, err := e.lookupDevice(device)
	if err != nil {
		return "", err
	}
	colName, err := SanitizeName(collection)
	if err != nil {
		return "", err
	}

	unlock := e.store.lock(dev.Path)
	defer unlock()

	doc, err := e.store.read(dev.Path)
	if err != nil {
		return "", err
	}

	now := nowStamp()
	col := doc.Collection(colName)
	if col == nil {
		col = newCollection(colName, CollectionRequest{}, now)
		if doc.PresetCollections == nil {
			doc.PresetCollections = make(map[string]*PresetCollection)
		}
		doc.PresetCollections[colName] = col
		e.logger.Info("collection auto-created", "device", dev.Name, "collection", colName)
	}
	if col.Metadata.ReadOnly {
		return "", fmt.Errorf("%w: %s", ErrCollectionReadOnly, colName)
	}
	if findPreset(col, name) >= 0 {
		return "", fmt.Errorf("%w: %q in collection %s", ErrPresetExists, name, colName)
	}

	// Positional ordinal at creation time. Walk forward past IDs left by
	// earlier deletions so the derived ID is unique within the collection.
	ordinal := len(col.Presets)
	id := GeneratePresetID(name, ordinal)
	for presetIDTaken(col, id) {
		ordinal++
		id = GeneratePresetID(name, ordinal)
	}

	col.Presets = append(col.Presets, &Preset{
		PresetID:   id,
		PresetName: name,
		Category:   req.Category,
		CC0:        req.CC0,
		PGM:        req.PGM,
		Characters: req.Characters,
		Command:    req.Command,
	})
	if col.PresetMetadata == nil {
		col.PresetMetadata = make(map[string]*PresetMeta)
	}
	col.PresetMetadata[id] = &PresetMeta{CreatedAt: now, ModifiedAt: now}
	touchCollection(col, now)

	stampModified(doc, e.agent)
	if err := e.store.write(dev.Path, doc); err != nil {
		return "", err
	}
	e.cache.Clear()

	e.logger.Info("preset created",
		"preset", name, "preset_id", id,
		"device", dev.Name, "collection", colName)
	e.audit.Record(ctx, "create", "preset", id, map[string]any{
		"preset_name":  name,
		"device":       dev.Name,
		"manufacturer": dev.Manufacturer,
		"collection":   colName,
	})
	return dev.Path, nil
}

// UpdatePreset patches a preset identified by display name within a
// collection. An absent name yields ErrPresetNotFound; the preset keeps
// its preset_id even across a rename.
func (e *Engine) UpdatePreset(ctx context.Context, device, collection, name string, upd PresetUpdate) error {
	dev, err := e.lookupDevice(device)
	if err != nil {
		return err
	}
	colName, err := SanitizeName(collection)
	if err != nil {
		return err
	}

	unlock := e.store.lock(dev.Path)
	defer unlock()

	doc, err := e.store.read(dev.Path)
	if err != nil {
		return err
	}
	col := doc.Collection(colName)
	if col == nil {
		return fmt.Errorf("%w: %s on device %s", ErrCollectionNotFound, colName, dev.Name)
	}
	if col.Metadata.ReadOnly {
		return fmt.Errorf("%w: %s", ErrCollectionReadOnly, colName)
	}
	idx := findPreset(col, name)
	if idx < 0 {
		return fmt.Errorf("%w: %q in collection %s", ErrPresetNotFound, name, colName)
	}
	preset := col.Presets[idx]

	if newName := strings.TrimSpace(upd.PresetName); newName != "" && newName != preset.PresetName {
		if findPreset(col, newName) >= 0 {
			return fmt.Errorf("%w: %q in collection %s", ErrPresetExists, newName, colName)
		}
		preset.PresetName = newName
	}
	if upd.Category != nil {
		preset.Category = *upd.Category
	}
	if upd.SetCC0 || upd.CC0 != nil {
		preset.CC0 = upd.CC0
	}
	if upd.PGM != nil {
		preset.PGM = *upd.PGM
	}
	if upd.Characters != nil {
		preset.Characters = upd.Characters
	}
	if upd.Command != nil {
		preset.Command = *upd.Command
	}

	now := nowStamp()
	if col.PresetMetadata == nil {
		col.PresetMetadata = make(map[string]*PresetMeta)
	}
	if meta := col.PresetMetadata[preset.PresetID]; meta != nil {
		meta.ModifiedAt = now
	} else {
		col.PresetMetadata[preset.PresetID] = &PresetMeta{ModifiedAt: now}
	}
	touchCollection(col, now)

	stampModified(doc, e.agent)
	if err := e.store.write(dev.Path, doc); err != nil {
		return err
	}
	e.cache.Clear()

	e.logger.Info("preset updated",
		"preset", preset.PresetName, "preset_id", preset.PresetID,
		"device", dev.Name, "collection", colName)
	e.audit.Record(ctx, "update", "preset", preset.PresetID, map[string]any{
		"preset_name":  preset.PresetName,
		"device":       dev.Name,
		"manufacturer": dev.Manufacturer,
		"collection":   colName,
	})
	return nil
}

// DeletePreset removes a preset (and its bookkeeping entry) from a
// collection and rewrites the document.
func (e *Engine) DeletePreset(ctx context.Context, device, collection, name string) error {
	dev, err := e.lookupDevice(device)
	if err != nil {
		return err
	}
	colName, err := SanitizeName(collection)
	if err != nil {
		return err
	}

	unlock := e.store.lock(dev.Path)
	defer unlock()

	doc, err := e.store.read(dev.Path)
	if err != nil {
		return err
	}
	col := doc.Collection(colName)
	if col == nil {
		return fmt.Errorf("%w: %s on device %s", ErrCollectionNotFound, colName, dev.Name)
	}
	if col.Metadata.ReadOnly {
		return fmt.Errorf("%w: %s", ErrCollectionReadOnly, colName)
	}
	idx := findPreset(col, name)
	if idx < 0 {
		return fmt.Errorf("%w: %q in collection %s", ErrPresetNotFound, name, colName)
	}

	id := col.Presets[idx].PresetID
	col.Presets = append(col.Presets[:idx], col.Presets[idx+1:]...)
	delete(col.PresetMetadata, id)
	touchCollection(col, nowStamp())

	stampModified(doc, e.agent)
	if err := e.store.write(dev.Path, doc); err != nil {
		return err
	}
	e.cache.Clear()

	e.logger.Info("preset deleted",
		"preset", name, "preset_id", id,
		"device", dev.Name, "collection", colName)
	e.audit.Record(ctx, "delete", "preset", id, map[string]any{
		"preset_name":  name,
		"device":       dev.Name,
		"manufacturer": dev.Manufacturer,
		"collection":   colName,
	})
	return nil
}

// findPreset returns the index of the preset with the given display
// name, or -1.
func findPreset(col *PresetCollection, name string) int {
	for i, p := range col.Presets {
		if p != nil && p.PresetName == name {
			return i
		}
	}
	return -1
}

// presetIDTaken reports whether an ID is already used by a preset or a
// bookkeeping entry in the collection.
func presetIDTaken(col *PresetCollection, id string) bool {
	for _, p := range col.Presets {
		if p != nil && p.PresetID == id {
			return true
		}
	}
	_, ok := col.PresetMetadata[id]
	return ok
}

// touchCollection refreshes the collection bookkeeping after a preset
// mutation: count re-derived from the slice, revision bumped, timestamp
// set. Keeping preset_count == len(presets) here is what the scan-time
// consumers rely on.
func touchCollection(col *PresetCollection, now string) {
	col.Metadata.PresetCount = len(col.Presets)
	col.Metadata.Revision++
	col.Metadata.ModifiedAt = now
}
