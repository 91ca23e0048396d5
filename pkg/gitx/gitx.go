// Package gitx wraps the git and gh CLIs. Everything here shells out; no
// libgit bindings are used so the user's existing git and gh configuration
// (signing, credentials, aliases) applies unchanged.
package gitx

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/skillctl/skillctl/pkg/logger"
)

// IsRepository reports whether the working directory is inside a git work tree.
func IsRepository() bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	return cmd.Run() == nil
}

// HasStagedChanges reports whether the index differs from HEAD.
func HasStagedChanges() bool {
	cmd := exec.Command("git", "diff", "--cached", "--quiet")
	// diff --quiet exits 1 when there are differences
	return cmd.Run() != nil
}

// StagedDiff returns `git diff --cached` output.
func StagedDiff(ctx context.Context) (string, error) {
	return run(ctx, "git", "diff", "--cached")
}

// DiffAgainst returns the diff of the working branch against the target
// branch, using the merge-base triple-dot form.
func DiffAgainst(ctx context.Context, target string) (string, error) {
	return run(ctx, "git", "diff", target+"...HEAD")
}

// CurrentBranch returns the checked-out branch name.
func CurrentBranch(ctx context.Context) (string, error) {
	return run(ctx, "git", "rev-parse", "--abbrev-ref", "HEAD")
}

// RecentLog returns the last n one-line commit subjects.
func RecentLog(ctx context.Context, n int) (string, error) {
	if n <= 0 {
		n = 10
	}
	return run(ctx, "git", "log", "--oneline", "--no-merges", "-n", strconv.Itoa(n))
}

// Commit creates a commit with the given message, via a temp file so
// multi-line messages survive intact.
func Commit(ctx context.Context, message string, sign bool) error {
	tempFile, err := os.CreateTemp("", "skillctl-commit-*.txt")
	if err != nil {
		return errors.Wrap(err, "error creating temporary file")
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.WriteString(message); err != nil {
		return errors.Wrap(err, "error writing to temporary file")
	}
	tempFile.Close()

	args := []string{"commit", "-F", tempFile.Name()}
	if sign {
		args = append(args, "-s")
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// PullRequestOptions shapes a `gh pr create` invocation.
type PullRequestOptions struct {
	Title string
	Body  string
	Base  string
	Draft bool
}

// CreatePullRequest opens a pull request through the gh CLI and returns its
// output (typically the PR URL).
func CreatePullRequest(ctx context.Context, opts PullRequestOptions) (string, error) {
	if _, err := exec.LookPath("gh"); err != nil {
		return "", errors.Wrap(err, "gh CLI is required to create pull requests")
	}

	args := []string{"pr", "create", "--title", opts.Title, "--body", opts.Body}
	if opts.Base != "" {
		args = append(args, "--base", opts.Base)
	}
	if opts.Draft {
		args = append(args, "--draft")
	}

	return run(ctx, "gh", args...)
}

// run executes a command, returning trimmed stdout and wrapping stderr into
// the error on failure.
func run(ctx context.Context, name string, args ...string) (string, error) {
	logger.G(ctx).WithFields(map[string]interface{}{
		"bin":  name,
		"args": args,
	}).Debug("Running command")

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", errors.Wrapf(err, "%s %s failed", name, strings.Join(args, " "))
		}
		return "", errors.Wrapf(err, "%s %s failed: %s", name, strings.Join(args, " "), msg)
	}

	return strings.TrimSpace(stdout.String()), nil
}
