package gitsync

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// runner executes git commands in a working directory and returns their
// combined output. The production implementation shells out to the git
// binary; tests inject a scripted fake.
type runner interface {
	run(ctx context.Context, dir string, args ...string) (string, error)
}

// gitRunner runs the real git executable.
type gitRunner struct{}

func (gitRunner) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		return output, fmt.Errorf("%w: git %s: %v: %s",
			ErrGitCommand, strings.Join(args, " "), err, output)
	}
	return output, nil
}
