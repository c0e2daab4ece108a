package catalog

import (
	"context"
	"fmt"
)

// CollectionRequest carries the metadata of a collection create.
type CollectionRequest struct {
	Version           string
	Author            string
	Description       string
	ReadOnly          bool
	ParentCollections []string
	SyncStatus        string
}

// CollectionUpdate is a partial metadata update. Nil pointer fields keep
// the current value; a non-nil ParentCollections replaces the list.
type CollectionUpdate struct {
	Version           *string
	Author            *string
	Description       *string
	ReadOnly          *bool
	ParentCollections []string
	SyncStatus        *string
}

// CreateCollection adds an empty named collection to a device document.
// Returns the written document path. An existing collection of the same
// name yields ErrCollectionExists.
func (e *Engine) CreateCollection(ctx context.Context, device, name string, req CollectionRequest) (string, error) {
	dev, err := e.lookupDevice(device)
	if err != nil {
		return "", err
	}
	colName, err := SanitizeName(name)
	if err != nil {
		return "", err
	}

	unlock := e.store.lock(dev.Path)
	defer unlock()

	doc, err := e.store.read(dev.Path)
	if err != nil {
		return "", err
	}
	if doc.Collection(colName) != nil {
		return "", fmt.Errorf("%w: %s on device %s", ErrCollectionExists, colName, dev.Name)
	}

	if doc.PresetCollections == nil {
		doc.PresetCollections = make(map[string]*PresetCollection)
	}
	doc.PresetCollections[colName] = newCollection(colName, req, nowStamp())

	stampModified(doc, e.agent)
	if err := e.store.write(dev.Path, doc); err != nil {
		return "", err
	}
	e.cache.Clear()

	e.logger.Info("collection created", "device", dev.Name, "collection", colName)
	e.audit.Record(ctx, "create", "collection", colName, map[string]any{
		"device":       dev.Name,
		"manufacturer": dev.Manufacturer,
	})
	return dev.Path, nil
}

// UpdateCollection patches a collection's metadata. A read-only
// collection rejects the update with ErrCollectionReadOnly unless the
// update itself clears the read-only flag, which is the one escape
// hatch for unlocking a collection through the API.
func (e *Engine) UpdateCollection(ctx context.Context, device, name string, upd CollectionUpdate) error {
	dev, err := e.lookupDevice(device)
	if err != nil {
		return err
	}
	colName, err := SanitizeName(name)
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
	unlocking := upd.ReadOnly != nil && !*upd.ReadOnly
	if col.Metadata.ReadOnly && !unlocking {
		return fmt.Errorf("%w: %s", ErrCollectionReadOnly, colName)
	}

	if upd.Version != nil {
		col.Metadata.Version = *upd.Version
	}
	if upd.Author != nil {
		col.Metadata.Author = *upd.Author
	}
	if upd.Description != nil {
		col.Metadata.Description = *upd.Description
	}
	if upd.ReadOnly != nil {
		col.Metadata.ReadOnly = *upd.ReadOnly
	}
	if upd.ParentCollections != nil {
		col.Metadata.ParentCollections = upd.ParentCollections
	}
	if upd.SyncStatus != nil {
		col.Metadata.SyncStatus = *upd.SyncStatus
	}
	col.Metadata.Revision++
	col.Metadata.ModifiedAt = nowStamp()

	stampModified(doc, e.agent)
	if err := e.store.write(dev.Path, doc); err != nil {
		return err
	}
	e.cache.Clear()

	e.logger.Info("collection updated", "device", dev.Name, "collection", colName)
	e.audit.Record(ctx, "update", "collection", colName, map[string]any{
		"device":       dev.Name,
		"manufacturer": dev.Manufacturer,
	})
	return nil
}

// DeleteCollection removes a collection and its presets from a device
// document.
func (e *Engine) DeleteCollection(ctx context.Context, device, name string) error {
	dev, err := e.lookupDevice(device)
	if err != nil {
		return err
	}
	colName, err := SanitizeName(name)
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

	delete(doc.PresetCollections, colName)

	stampModified(doc, e.agent)
	if err := e.store.write(dev.Path, doc); err != nil {
		return err
	}
	e.cache.Clear()

	e.logger.Info("collection deleted", "device", dev.Name, "collection", colName)
	e.audit.Record(ctx, "delete", "collection", colName, map[string]any{
		"device":       dev.Name,
		"manufacturer": dev.Manufacturer,
	})
	return nil
}

// RenameCollection moves a collection under a new key and updates its
// metadata name. Other collections referencing the old name in their
// parent_collections keep the stale reference until the next rescan;
// nothing rewrites them here.
func (e *Engine) RenameCollection(ctx context.Context, device, oldName, newName string) error {
	dev, err := e.lookupDevice(device)
	if err != nil {
		return err
	}
	oldCol, err := SanitizeName(oldName)
	if err != nil {
		return err
	}
	newCol, err := SanitizeName(newName)
	if err != nil {
		return err
	}

	unlock := e.store.lock(dev.Path)
	defer unlock()

	doc, err := e.store.read(dev.Path)
	if err != nil {
		return err
	}
	col := doc.Collection(oldCol)
	if col == nil {
		return fmt.Errorf("%w: %s on device %s", ErrCollectionNotFound, oldCol, dev.Name)
	}
	if col.Metadata.ReadOnly {
		return fmt.Errorf("%w: %s", ErrCollectionReadOnly, oldCol)
	}
	if doc.Collection(newCol) != nil {
		return fmt.Errorf("%w: %s on device %s", ErrCollectionExists, newCol, dev.Name)
	}

	doc.PresetCollections[newCol] = col
	delete(doc.PresetCollections, oldCol)
	col.Metadata.Name = newCol
	col.Metadata.Revision++
	col.Metadata.ModifiedAt = nowStamp()

	stampModified(doc, e.agent)
	if err := e.store.write(dev.Path, doc); err != nil {
		return err
	}
	e.cache.Clear()

	e.logger.Info("collection renamed",
		"device", dev.Name, "from", oldCol, "to", newCol)
	e.audit.Record(ctx, "rename", "collection", newCol, map[string]any{
		"device":       dev.Name,
		"manufacturer": dev.Manufacturer,
		"previous":     oldCol,
	})
	return nil
}

// newCollection builds an empty collection with stamped metadata.
func newCollection(name string, req CollectionRequest, now string) *PresetCollection {
	return &PresetCollection{
		Metadata: CollectionMeta{
			Name:              name,
			Version:           req.Version,
			Revision:          1,
			Author:            req.Author,
			Description:       req.Description,
			ReadOnly:          req.ReadOnly,
			PresetCount:       0,
			ParentCollections: req.ParentCollections,
			SyncStatus:        req.SyncStatus,
			CreatedAt:         now,
			ModifiedAt:        now,
		},
		Presets:        []*Preset{},
		PresetMetadata: make(map[string]*PresetMeta),
	}
}
