// Package gitops implements the loop's Publisher over a local git checkout.
// The driver never creates commits; it only detects work the agent left
// behind (dirty worktree or commits ahead of upstream) and pushes it.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultCommandTimeout  = 2 * time.Minute
	defaultMaxRetryElapsed = 15 * time.Second
)

// Injectable for tests so no real repository is needed.
var runGitOutput = runGitOutputReal

// Publisher queries and pushes the git state of a project directory.
type Publisher struct {
	// Dir is the project root the loop operates in.
	Dir string
	// Remote and Branch select the push target. Both empty means a plain
	// "git push" using the branch's configured upstream.
	Remote string
	Branch string
	// CommandTimeout bounds each git command (default 2m).
	CommandTimeout time.Duration
	// MaxRetryElapsed bounds the push retry window (default 15s). Retries
	// only smooth over transient remote hiccups; the final error is still
	// surfaced to the loop, which treats it as a warning.
	MaxRetryElapsed time.Duration
}

// Detected reports whether version-control metadata is present. When it is
// not, the loop skips publishing entirely; that is not an error.
func (p *Publisher) Detected() bool {
	info, err := os.Stat(filepath.Join(p.Dir, ".git"))
	if err != nil {
		return false
	}
	// .git is a directory in a normal checkout and a file in a worktree.
	return info.IsDir() || info.Mode().IsRegular()
}

// HasPendingChanges reports whether the worktree has uncommitted changes or
// local commits not yet on the upstream remote.
func (p *Publisher) HasPendingChanges(ctx context.Context) (bool, error) {
	out, err := p.git(ctx, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status: %w", err)
	}
	if strings.TrimSpace(out) != "" {
		return true, nil
	}
	return p.hasUnpushedCommits(ctx), nil
}

// hasUnpushedCommits counts commits ahead of @{u}. A branch with no upstream
// reports no unpushed commits, matching the original driver's silent
// tolerance of fresh branches.
func (p *Publisher) hasUnpushedCommits(ctx context.Context) bool {
	out, err := p.git(ctx, "rev-list", "--count", "@{u}..HEAD")
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return false
	}
	return n > 0
}

// Publish pushes pending commits, retrying transient failures briefly.
func (p *Publisher) Publish(ctx context.Context) error {
	args := []string{"push"}
	if p.Remote != "" {
		args = append(args, p.Remote)
		if p.Branch != "" {
			args = append(args, p.Branch)
		}
	}

	var lastOut string
	op := func() error {
		out, err := p.git(ctx, args...)
		lastOut = out
		return err
	}

	// Backoff instances are stateful; build a fresh one per publish.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = p.maxRetryElapsed()

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if msg := strings.TrimSpace(lastOut); msg != "" {
			return fmt.Errorf("git push: %w: %s", err, firstLine(msg))
		}
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

func (p *Publisher) git(ctx context.Context, args ...string) (string, error) {
	return runGitOutput(ctx, p.Dir, p.commandTimeout(), args...)
}

func (p *Publisher) commandTimeout() time.Duration {
	if p.CommandTimeout > 0 {
		return p.CommandTimeout
	}
	return defaultCommandTimeout
}

func (p *Publisher) maxRetryElapsed() time.Duration {
	if p.MaxRetryElapsed > 0 {
		return p.MaxRetryElapsed
	}
	return defaultMaxRetryElapsed
}

func runGitOutputReal(ctx context.Context, dir string, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return strings.TrimSpace(string(out)), fmt.Errorf("git %s timed out after %s", strings.Join(args, " "), timeout)
	}
	return strings.TrimSpace(string(out)), err
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
