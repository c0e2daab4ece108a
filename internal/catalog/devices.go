package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DeviceRequest carries the optional fields of a device create. The
// device and manufacturer names travel as separate arguments because
// they also name the directories the document lands in.
type DeviceRequest struct {
	Version        string
	ManufacturerID int
	DeviceID       int
	Ports          int
	MIDIChannels   map[string]int
	MIDIPorts      map[string]string
	Capabilities   map[string]any
}

// CreateDevice writes a skeleton device document under an existing
// manufacturer and rescans the index. Returns the written document path.
//
// The document lands in the nested form
// <root>/<manufacturer>/<device-dir>/<manufacturer>_<device>.json. The
// stored device_info.name keeps the caller's spelling (trimmed); the
// sanitised form names the directory and file. Device names are globally
// unique across the catalog, so a name already present under any
// manufacturer yields ErrDeviceExists.
func (e *Engine) CreateDevice(ctx context.Context, manufacturer, name string, req DeviceRequest) (string, error) {
	display := strings.TrimSpace(name)
	safe, err := SanitizeName(name)
	if err != nil {
		return "", err
	}
	safeMfr, err := SanitizeName(manufacturer)
	if err != nil {
		return "", err
	}

	if _, err := e.manufacturerDir(safeMfr); err != nil {
		return "", err
	}

	if snap := e.snapshot(); snap != nil {
		if _, taken := snap.Devices[display]; taken {
			return "", fmt.Errorf("%w: %s", ErrDeviceExists, display)
		}
	}

	deviceDir, err := e.EnsureStructure(safeMfr, safe)
	if err != nil {
		return "", err
	}
	path := filepath.Join(deviceDir, documentFileName(safeMfr, safe))
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: document already present at %s", ErrDeviceExists, path)
	}

	doc := &Document{
		Metadata: newDocumentMeta(e.agent),
		DeviceInfo: &DeviceInfo{
			Name:           display,
			Version:        req.Version,
			Manufacturer:   safeMfr,
			ManufacturerID: req.ManufacturerID,
			DeviceID:       req.DeviceID,
			Ports:          req.Ports,
			MIDIChannels:   req.MIDIChannels,
			MIDIPorts:      req.MIDIPorts,
		},
		Capabilities: req.Capabilities,
	}

	unlock := e.store.lock(path)
	err = e.store.write(path, doc)
	unlock()
	if err != nil {
		return "", err
	}

	e.logger.Info("device created", "device", display, "manufacturer", safeMfr, "path", path)
	e.audit.Record(ctx, "create", "device", display, map[string]any{
		"manufacturer": safeMfr,
		"path":         path,
	})

	e.cache.Clear()
	if err := e.Rescan(ctx); err != nil {
		return path, err
	}
	return path, nil
}

// DeleteDevice removes a device's backing document and rescans the
// index. Nested-form devices lose their whole directory; flat-form
// devices lose just the file. Unknown names yield ErrDeviceNotFound.
func (e *Engine) DeleteDevice(ctx context.Context, name string) error {
	dev, err := e.lookupDevice(name)
	if err != nil {
		return err
	}

	target := dev.Path
	parent := filepath.Dir(dev.Path)
	if parent != filepath.Join(e.root, dev.Manufacturer) {
		// Nested form: the document sits in its own device directory.
		target = parent
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("removing device %s: %w", name, err)
	}

	e.logger.Info("device deleted", "device", name, "manufacturer", dev.Manufacturer, "path", target)
	e.audit.Record(ctx, "delete", "device", name, map[string]any{
		"manufacturer": dev.Manufacturer,
		"path":         target,
	})

	e.cache.Clear()
	return e.Rescan(ctx)
}

// EnsureStructure checks and creates the directory chain for a device,
// returning the device directory path. Both names are normalised; the
// manufacturer directory (with its community subdirectory) is created
// when absent.
func (e *Engine) EnsureStructure(manufacturer, device string) (string, error) {
	safeMfr, err := SanitizeName(manufacturer)
	if err != nil {
		return "", err
	}
	safeDev, err := SanitizeName(device)
	if err != nil {
		return "", err
	}

	dir, err := joinUnder(e.root, safeMfr, safeDev)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating device directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(filepath.Join(e.root, safeMfr, communityDirName), 0o750); err != nil {
		return "", fmt.Errorf("creating community directory for %s: %w", safeMfr, err)
	}
	return dir, nil
}
