package gitsync

import "errors"

// ErrGitCommand wraps every git subprocess failure. The wrapped message
// carries the command line and its trimmed output for diagnosis. Callers
// of the engine only ever see it flattened into a Result message; no
// error from this package crosses the public boundary.
var ErrGitCommand = errors.New("gitsync: git command failed")
