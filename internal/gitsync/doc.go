// Package gitsync keeps the on-disk preset catalog synchronised with its
// remote git repository.
//
// The catalog root is either a standalone clone of the remote (release
// deployments) or a git submodule of the parent repository (development
// checkouts); Mode selects which layout the engine maintains.
//
// Entry points:
//
//   - EnsureHealthy is the idempotent startup check: it clones a missing
//     root, replaces an unusable one, auto-commits stray local edits so
//     the pull cannot fail on them, and pulls. Re-running it on a healthy
//     root performs no destructive action.
//   - Repair is the escalating ladder for a root EnsureHealthy cannot
//     save. Each rung runs only after the previous one failed; the final
//     rung replaces the working tree outright while preserving local
//     files the fresh checkout lacks.
//   - Push publishes local catalog edits upstream, short-circuiting with
//     success when there is nothing to commit.
//
// Every entry point returns a Result value instead of an error: sync
// failures degrade the engine, they never break the caller. All git work
// shells out to the git executable through an injectable runner, so
// tests script command outcomes without touching a real repository.
//
// Example usage:
//
//	engine, err := gitsync.New(gitsync.Config{
//	    Enabled: true,
//	    Root:    "/srv/patchbay/catalog",
//	    Mode:    gitsync.ModeForRole(cfg.Sync.Role),
//	})
//	if err != nil {
//	    return err
//	}
//	engine.SetLogger(log)
//
//	if res := engine.EnsureHealthy(ctx); !res.OK {
//	    log.Error("catalog sync unhealthy", "code", res.Code, "message", res.Message)
//	}
package gitsync
