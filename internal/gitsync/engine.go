package gitsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Mode selects the repository layout the engine maintains.
type Mode string

const (
	// ModeClone keeps the catalog root as a standalone clone of the
	// remote repository. This is the release default.
	ModeClone Mode = "clone"

	// ModeSubmodule keeps the catalog root as a git submodule of the
	// parent repository, the development layout.
	ModeSubmodule Mode = "submodule"
)

// ModeForRole maps the configured role flag to a Mode. "development"
// selects the submodule layout; everything else is the release clone.
func ModeForRole(role string) Mode {
	if strings.EqualFold(role, "development") {
		return ModeSubmodule
	}
	return ModeClone
}

// DefaultRemoteURL is the compiled-in catalog repository, used when the
// configuration does not override it.
const DefaultRemoteURL = "https://github.com/patchbay-dev/patchbay-catalog.git"

// autoCommitMessage labels commits made to rescue uncommitted local
// changes before a pull.
const autoCommitMessage = "auto-commit local catalog changes before sync"

// Result codes identify which path an operation took. They are stable
// strings the route layer can switch on.
const (
	CodeDisabled   = "disabled"
	CodeHealthy    = "healthy"
	CodeCloned     = "cloned"
	CodeRecloned   = "recloned"
	CodeRecovered  = "recovered"
	CodeRegistered = "registered"
	CodeRepaired   = "repaired"
	CodeClean      = "clean"
	CodePushed     = "pushed"
	CodeError      = "error"
)

// Result is the outcome of one sync operation. The engine never returns
// errors: failures degrade to OK=false with a code and a message the
// route layer can render directly.
type Result struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`

	// Rung reports which repair ladder rung succeeded, on Repair results.
	Rung int `json:"rung,omitempty"`
}

// Logger is the minimal logging interface the engine requires.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is used when no logger is set.
type noopLogger struct{}

func (n *noopLogger) Debug(msg string, args ...any) {}
func (n *noopLogger) Info(msg string, args ...any)  {}
func (n *noopLogger) Warn(msg string, args ...any)  {}
func (n *noopLogger) Error(msg string, args ...any) {}

// Config carries the sync engine's construction parameters, typically
// derived from the sync section of config.yaml.
type Config struct {
	// Enabled gates every operation; a disabled engine returns a fixed
	// "disabled" result from each entry point.
	Enabled bool

	// Root is the catalog working tree the engine maintains. Required.
	Root string

	// Mode selects the repository layout. Empty defaults to ModeClone.
	Mode Mode

	// RemoteURL overrides the compiled-in catalog repository.
	RemoteURL string

	// Branch is the branch pulled and pushed. Empty defaults to "main".
	Branch string

	// ParentDir is the parent repository working tree for submodule
	// mode. Empty defaults to the directory above Root.
	ParentDir string

	// CommitMessage labels Push commits.
	CommitMessage string

	// AuthorName and AuthorEmail set the committer identity, so
	// deployments without global git configuration can still commit.
	AuthorName  string
	AuthorEmail string
}

// Engine keeps one catalog root synchronised with its remote repository.
// All state lives on the instance; construct one per catalog.
type Engine struct {
	enabled       bool
	root          string
	parentDir     string
	mode          Mode
	remoteURL     string
	branch        string
	commitMessage string
	authorName    string
	authorEmail   string

	run    runner
	logger Logger
}

// New creates a sync engine for the catalog at cfg.Root. The root does
// not need to exist yet; EnsureHealthy creates it by cloning.
func New(cfg Config) (*Engine, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("gitsync: catalog root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("gitsync: resolving catalog root: %w", err)
	}

	parent := cfg.ParentDir
	if parent == "" {
		parent = filepath.Dir(root)
	} else if parent, err = filepath.Abs(parent); err != nil {
		return nil, fmt.Errorf("gitsync: resolving parent directory: %w", err)
	}

	mode := cfg.Mode
	if mode == "" {
		mode = ModeClone
	}
	remote := cfg.RemoteURL
	if remote == "" {
		remote = DefaultRemoteURL
	}
	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}
	message := cfg.CommitMessage
	if message == "" {
		message = "catalog sync"
	}

	return &Engine{
		enabled:       cfg.Enabled,
		root:          root,
		parentDir:     parent,
		mode:          mode,
		remoteURL:     remote,
		branch:        branch,
		commitMessage: message,
		authorName:    cfg.AuthorName,
		authorEmail:   cfg.AuthorEmail,
		run:           gitRunner{},
		logger:        &noopLogger{},
	}, nil
}

// SetLogger configures structured logging for the engine.
func (e *Engine) SetLogger(logger Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// Root returns the absolute catalog root the engine maintains.
func (e *Engine) Root() string {
	return e.root
}

// Mode returns the repository layout the engine maintains.
func (e *Engine) Mode() Mode {
	return e.mode
}

// EnsureHealthy brings the catalog root to a healthy synchronised state.
// It is idempotent: called on an already-healthy root it only commits
// stray local edits and pulls, never anything destructive.
func (e *Engine) EnsureHealthy(ctx context.Context) Result {
	if !e.enabled {
		return e.disabled()
	}
	if e.mode == ModeSubmodule {
		return e.ensureSubmodule(ctx)
	}
	return e.ensureClone(ctx)
}

// ensureClone maintains the standalone-clone layout: clone a missing
// root, replace an unusable one, otherwise auto-commit and pull.
func (e *Engine) ensureClone(ctx context.Context) Result {
	switch {
	case !e.rootExists():
		if err := e.clone(ctx); err != nil {
			return e.failure("cloning catalog", err)
		}
		return Result{OK: true, Code: CodeCloned, Message: "catalog cloned from " + e.remoteURL}

	case !e.validRepo(ctx):
		e.logger.Warn("catalog root is not a usable repository, replacing", "root", e.root)
		if err := os.RemoveAll(e.root); err != nil {
			return e.failure("removing invalid catalog root", err)
		}
		if err := e.clone(ctx); err != nil {
			return e.failure("re-cloning catalog", err)
		}
		return Result{OK: true, Code: CodeRecloned, Message: "invalid repository replaced with a fresh clone"}
	}

	if err := e.commitLocalChanges(ctx); err != nil {
		return e.failure("committing local changes", err)
	}
	if _, err := e.git(ctx, e.root, "pull", "--rebase", "origin", e.branch); err != nil {
		e.logger.Warn("pull failed, attempting stash recovery", "error", err)
		if rerr := e.recoverPull(ctx); rerr != nil {
			return e.failure("recovering failed pull", rerr)
		}
		return Result{OK: true, Code: CodeRecovered, Message: "pull conflict recovered via stash"}
	}
	return Result{OK: true, Code: CodeHealthy, Message: "catalog up to date"}
}

// ensureSubmodule maintains the submodule layout: a root that is a plain
// clone or unregistered is removed and re-registered, a healthy one is
// updated in place.
func (e *Engine) ensureSubmodule(ctx context.Context) Result {
	rel, err := e.submodulePath()
	if err != nil {
		return e.failure("resolving submodule path", err)
	}

	if e.submoduleHealthy(ctx, rel) {
		if _, err := e.git(ctx, e.parentDir, "submodule", "update", "--init", "--recursive", "--", rel); err != nil {
			return e.failure("updating submodule", err)
		}
		return Result{OK: true, Code: CodeHealthy, Message: "submodule up to date"}
	}

	e.logger.Warn("catalog root is not a registered submodule, re-registering", "root", e.root)
	if err := os.RemoveAll(e.root); err != nil {
		return e.failure("removing stale catalog root", err)
	}
	if _, err := e.git(ctx, e.parentDir, "submodule", "add", "--force", e.remoteURL, rel); err != nil {
		return e.failure("registering submodule", err)
	}
	if _, err := e.git(ctx, e.parentDir, "submodule", "update", "--init", "--recursive", "--", rel); err != nil {
		return e.failure("initialising submodule", err)
	}
	return Result{OK: true, Code: CodeRegistered, Message: "catalog registered as submodule"}
}

// clone fetches a fresh copy of the remote into the catalog root.
func (e *Engine) clone(ctx context.Context) error {
	parent := filepath.Dir(e.root)
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return fmt.Errorf("creating clone parent directory: %w", err)
	}
	_, err := e.git(ctx, parent, "clone", "--branch", e.branch, e.remoteURL, e.root)
	return err
}

// commitLocalChanges commits a dirty working tree so the following pull
// cannot fail on uncommitted changes. A clean tree is a no-op.
func (e *Engine) commitLocalChanges(ctx context.Context) error {
	dirty, err := e.hasChanges(ctx, e.root)
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	if _, err := e.git(ctx, e.root, "add", "-A"); err != nil {
		return err
	}
	if err := e.commit(ctx, e.root, autoCommitMessage); err != nil {
		return err
	}
	e.logger.Info("uncommitted catalog changes auto-committed before pull")
	return nil
}

// recoverPull rescues a failed pull: abort any half-applied rebase,
// stash whatever remains, pull again, then restore the stash.
func (e *Engine) recoverPull(ctx context.Context) error {
	// There may be no rebase in progress; the abort result is ignored.
	_, _ = e.git(ctx, e.root, "rebase", "--abort")

	out, err := e.git(ctx, e.root, "stash", "push", "--include-untracked")
	if err != nil {
		return err
	}
	stashed := !strings.Contains(out, "No local changes")

	if _, err := e.git(ctx, e.root, "pull", "--rebase", "origin", e.branch); err != nil {
		return err
	}

	if stashed {
		if _, err := e.git(ctx, e.root, "stash", "pop"); err != nil {
			return err
		}
	}
	return nil
}

// hasChanges reports whether the working tree at dir is dirty.
func (e *Engine) hasChanges(ctx context.Context, dir string) (bool, error) {
	out, err := e.git(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// commit records staged changes under the engine's author identity, so a
// deployment without global git configuration can still commit.
func (e *Engine) commit(ctx context.Context, dir, message string) error {
	args := make([]string, 0, 7)
	if e.authorName != "" {
		args = append(args, "-c", "user.name="+e.authorName)
	}
	if e.authorEmail != "" {
		args = append(args, "-c", "user.email="+e.authorEmail)
	}
	args = append(args, "commit", "-m", message)
	_, err := e.git(ctx, dir, args...)
	return err
}

// rootExists reports whether the catalog root directory is present.
func (e *Engine) rootExists() bool {
	info, err := os.Stat(e.root)
	return err == nil && info.IsDir()
}

// validRepo reports whether the catalog root carries a usable git
// repository: a .git entry (directory for clones, pointer file for
// submodules) that git itself accepts.
func (e *Engine) validRepo(ctx context.Context) bool {
	if _, err := os.Stat(filepath.Join(e.root, ".git")); err != nil {
		return false
	}
	_, err := e.git(ctx, e.root, "rev-parse", "--git-dir")
	return err == nil
}

// submodulePath returns the catalog root relative to the parent
// repository, the path git submodule commands expect.
func (e *Engine) submodulePath() (string, error) {
	rel, err := filepath.Rel(e.parentDir, e.root)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("catalog root %s is not inside parent repository %s", e.root, e.parentDir)
	}
	return filepath.ToSlash(rel), nil
}

// submoduleHealthy reports whether the catalog root looks like a
// registered submodule: its .git entry is the pointer file git writes
// for submodules (a plain clone has a .git directory), and the parent's
// .gitmodules carries an entry for the path.
func (e *Engine) submoduleHealthy(ctx context.Context, rel string) bool {
	info, err := os.Stat(filepath.Join(e.root, ".git"))
	if err != nil || info.IsDir() {
		return false
	}
	_, err = e.git(ctx, e.parentDir, "config", "--file", ".gitmodules", "--get", "submodule."+rel+".path")
	return err == nil
}

// git runs one git command through the runner.
func (e *Engine) git(ctx context.Context, dir string, args ...string) (string, error) {
	e.logger.Debug("git", "dir", dir, "args", strings.Join(args, " "))
	return e.run.run(ctx, dir, args...)
}

// disabled is the fixed result every entry point returns when sync is
// switched off.
func (e *Engine) disabled() Result {
	return Result{OK: true, Code: CodeDisabled, Message: "catalog sync is disabled"}
}

// failure logs and wraps one failed stage into a Result.
func (e *Engine) failure(stage string, err error) Result {
	e.logger.Error("sync operation failed", "stage", stage, "error", err)
	return Result{OK: false, Code: CodeError, Message: stage + ": " + err.Error()}
}
