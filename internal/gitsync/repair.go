package gitsync

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Repair climbs the escalating repair ladder until one rung leaves the
// catalog healthy. Each rung runs only after the previous one failed;
// the first success returns immediately. Exhausting every rung yields a
// failure Result carrying the last error.
//
// Submodule mode has three rungs: a plain sync+update, a forced
// deinit+update, and finally a full replacement that re-registers the
// submodule from a resolved URL while preserving local files. Clone mode
// has a single equivalent rung, the preserving replacement.
func (e *Engine) Repair(ctx context.Context) Result {
	if !e.enabled {
		return e.disabled()
	}

	type rung struct {
		name string
		fn   func(context.Context) error
	}

	var rungs []rung
	if e.mode == ModeSubmodule {
		rel, err := e.submodulePath()
		if err != nil {
			return e.failure("resolving submodule path", err)
		}
		rungs = []rung{
			{"submodule sync and update", func(ctx context.Context) error { return e.repairSync(ctx, rel) }},
			{"forced submodule reinitialise", func(ctx context.Context) error { return e.repairDeinit(ctx, rel) }},
			{"submodule replacement", func(ctx context.Context) error { return e.repairReplace(ctx, rel) }},
		}
	} else {
		rungs = []rung{
			{"clone replacement", e.repairClone},
		}
	}

	var lastErr error
	for i, r := range rungs {
		if err := r.fn(ctx); err != nil {
			e.logger.Warn("repair rung failed, escalating", "rung", i+1, "name", r.name, "error", err)
			lastErr = err
			continue
		}
		e.logger.Info("catalog repaired", "rung", i+1, "name", r.name)
		return Result{OK: true, Code: CodeRepaired, Rung: i + 1, Message: "repaired: " + r.name}
	}
	return Result{OK: false, Code: CodeError, Message: fmt.Sprintf("all repair rungs exhausted: %v", lastErr)}
}

// repairSync is the gentlest rung: re-sync the submodule URL from
// .gitmodules and update the working tree.
func (e *Engine) repairSync(ctx context.Context, rel string) error {
	if _, err := e.git(ctx, e.parentDir, "submodule", "sync", "--", rel); err != nil {
		return err
	}
	_, err := e.git(ctx, e.parentDir, "submodule", "update", "--init", "--recursive", "--", rel)
	return err
}

// repairDeinit deregisters the submodule working tree and forces a
// fresh checkout from the recorded revision.
func (e *Engine) repairDeinit(ctx context.Context, rel string) error {
	if _, err := e.git(ctx, e.parentDir, "submodule", "deinit", "--force", "--", rel); err != nil {
		return err
	}
	_, err := e.git(ctx, e.parentDir, "submodule", "update", "--init", "--recursive", "--force", "--", rel)
	return err
}

// repairReplace is the most aggressive rung: copy the working tree
// aside, remove the directory and its index entry, re-register the
// submodule from the resolved URL, then restore any preserved file the
// fresh checkout lacks.
func (e *Engine) repairReplace(ctx context.Context, rel string) error {
	url := e.resolveSubmoduleURL(ctx, rel)

	preserved, err := e.copyAside()
	if err != nil {
		return err
	}

	if err := os.RemoveAll(e.root); err != nil {
		return fmt.Errorf("removing catalog root: %w", err)
	}
	// The index entry may already be gone; removal failure is not fatal.
	_, _ = e.git(ctx, e.parentDir, "rm", "-rf", "--cached", rel)

	if _, err := e.git(ctx, e.parentDir, "submodule", "add", "--force", url, rel); err != nil {
		return err
	}
	if _, err := e.git(ctx, e.parentDir, "submodule", "update", "--init", "--recursive", "--", rel); err != nil {
		return err
	}

	e.restorePreserved(preserved)
	return nil
}

// repairClone is the clone-mode replacement rung: the same preserving
// replace as repairReplace, without the submodule bookkeeping.
func (e *Engine) repairClone(ctx context.Context) error {
	preserved, err := e.copyAside()
	if err != nil {
		return err
	}
	if err := os.RemoveAll(e.root); err != nil {
		return fmt.Errorf("removing catalog root: %w", err)
	}
	if err := e.clone(ctx); err != nil {
		return err
	}
	e.restorePreserved(preserved)
	return nil
}

// resolveSubmoduleURL determines the remote to re-register from: the
// parent's submodule config first, .gitmodules second, the configured
// remote last. A resolved URL that disagrees with the configured remote
// is overridden, so a tampered .gitmodules cannot redirect the catalog.
func (e *Engine) resolveSubmoduleURL(ctx context.Context, rel string) string {
	key := "submodule." + rel + ".url"

	resolved := ""
	if out, err := e.git(ctx, e.parentDir, "config", "--get", key); err == nil {
		resolved = strings.TrimSpace(out)
	}
	if resolved == "" {
		if out, err := e.git(ctx, e.parentDir, "config", "--file", ".gitmodules", "--get", key); err == nil {
			resolved = strings.TrimSpace(out)
		}
	}

	if resolved == "" {
		return e.remoteURL
	}
	if resolved != e.remoteURL {
		e.logger.Warn("submodule URL differs from configured remote, overriding",
			"found", resolved, "using", e.remoteURL)
		return e.remoteURL
	}
	return resolved
}

// copyAside snapshots the catalog working tree into a fresh temporary
// directory so replacement cannot lose local files. Returns "" when the
// root does not exist.
func (e *Engine) copyAside() (string, error) {
	if !e.rootExists() {
		return "", nil
	}
	tmp, err := os.MkdirTemp("", "patchbay-repair-")
	if err != nil {
		return "", fmt.Errorf("creating preservation directory: %w", err)
	}
	if err := copyTree(e.root, tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return "", fmt.Errorf("preserving working tree: %w", err)
	}
	return tmp, nil
}

// restorePreserved copies files the fresh checkout lacks back from the
// preservation directory, then deletes it. Restoration is best-effort: a
// failure leaves the preserved copy on disk and logs its location rather
// than failing the rung that just produced a healthy checkout.
func (e *Engine) restorePreserved(preserved string) {
	if preserved == "" {
		return
	}
	if err := restoreMissing(preserved, e.root); err != nil {
		e.logger.Warn("restoring preserved files failed, copy retained",
			"preserved", preserved, "error", err)
		return
	}
	_ = os.RemoveAll(preserved)
}

// copyTree copies the directory tree at src into dst, skipping git
// bookkeeping entries.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.Name() == ".git" {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

// restoreMissing copies every preserved file absent from root back into
// place. Files the fresh checkout already has win over preserved copies.
func restoreMissing(preserved, root string) error {
	return filepath.WalkDir(preserved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(preserved, path)
		if err != nil {
			return err
		}
		target := filepath.Join(root, rel)
		if _, err := os.Stat(target); err == nil {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return err
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
