package gitsync

import "context"

// Push publishes local catalog edits to the remote: stage everything,
// commit with the configured message, push the branch. A clean tree
// short-circuits with success before any commit. In submodule mode the
// updated submodule pointer is additionally staged in the parent
// repository so the next parent commit records the new catalog revision.
func (e *Engine) Push(ctx context.Context) Result {
	if !e.enabled {
		return e.disabled()
	}

	if _, err := e.git(ctx, e.root, "add", "-A"); err != nil {
		return e.failure("staging catalog changes", err)
	}

	dirty, err := e.hasChanges(ctx, e.root)
	if err != nil {
		return e.failure("checking catalog status", err)
	}
	if !dirty {
		return Result{OK: true, Code: CodeClean, Message: "nothing to commit"}
	}

	if err := e.commit(ctx, e.root, e.commitMessage); err != nil {
		return e.failure("committing catalog changes", err)
	}
	if _, err := e.git(ctx, e.root, "push", "origin", e.branch); err != nil {
		return e.failure("pushing catalog changes", err)
	}

	if e.mode == ModeSubmodule {
		rel, err := e.submodulePath()
		if err != nil {
			return e.failure("resolving submodule path", err)
		}
		if _, err := e.git(ctx, e.parentDir, "add", rel); err != nil {
			return e.failure("staging submodule pointer", err)
		}
	}

	e.logger.Info("catalog changes pushed", "branch", e.branch)
	return Result{OK: true, Code: CodePushed, Message: "catalog changes pushed to " + e.branch}
}
