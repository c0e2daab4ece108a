package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// CreateManufacturer adds a manufacturer directory under the catalog
// root, including its community subdirectory, then rescans the index.
// Returns the created directory path.
//
// The name is normalised before use; anything carrying a path separator
// or traversal element is rejected with ErrUnsafeName, so nothing is
// ever created outside the catalog root.
func (e *Engine) CreateManufacturer(ctx context.Context, name string) (string, error) {
	safe, err := SanitizeName(name)
	if err != nil {
		return "", err
	}
	dir, err := joinUnder(e.root, safe)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(dir); err == nil {
		return "", fmt.Errorf("%w: %s", ErrManufacturerExists, safe)
	}

	if err := os.MkdirAll(filepath.Join(dir, communityDirName), 0o750); err != nil {
		return "", fmt.Errorf("creating manufacturer %s: %w", safe, err)
	}

	e.logger.Info("manufacturer created", "manufacturer", safe, "path", dir)
	e.audit.Record(ctx, "create", "manufacturer", safe, map[string]any{"path": dir})

	e.cache.Clear()
	if err := e.Rescan(ctx); err != nil {
		return dir, err
	}
	return dir, nil
}

// DeleteManufacturer removes a manufacturer directory and everything
// beneath it, then rescans the index. A missing manufacturer yields
// ErrManufacturerNotFound, never a panic.
func (e *Engine) DeleteManufacturer(ctx context.Context, name string) error {
	safe, err := SanitizeName(name)
	if err != nil {
		return err
	}
	dir, err := joinUnder(e.root, safe)
	if err != nil {
		return err
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrManufacturerNotFound, safe)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing manufacturer %s: %w", safe, err)
	}

	e.logger.Info("manufacturer deleted", "manufacturer", safe, "path", dir)
	e.audit.Record(ctx, "delete", "manufacturer", safe, map[string]any{"path": dir})

	e.cache.Clear()
	return e.Rescan(ctx)
}

// manufacturerDir resolves an existing manufacturer directory, or
// ErrManufacturerNotFound when it is absent.
func (e *Engine) manufacturerDir(name string) (string, error) {
	dir, err := joinUnder(e.root, name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrManufacturerNotFound, name)
	}
	return dir, nil
}
