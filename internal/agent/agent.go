// Package agent invokes the external coding-agent CLI. One invocation per
// call: spawn the process with the payload, inherit the project directory,
// stream its output through, and report its exit status. No timeout is
// imposed; the agent may run as long as it needs, and cancellation of the
// context kills it.
package agent

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Injectable for tests so no real agent process is spawned.
var runAgentProcess = runAgentProcessReal

// Runner invokes a coding-agent CLI such as claude or codex.
type Runner struct {
	// Command is the executable name, resolved via PATH.
	Command string
	// Args are the fixed arguments placed before the payload (e.g. ["-p"]).
	Args []string
	// ExtraArgs are appended after the payload (e.g. permission overrides).
	ExtraArgs []string
	// Dir is the working directory for the agent process.
	Dir string

	Stdout io.Writer
	Stderr io.Writer
}

// Preflight verifies the agent command can be resolved on PATH.
func (r *Runner) Preflight() error {
	if r.Command == "" {
		return fmt.Errorf("agent command is empty")
	}
	if _, err := exec.LookPath(r.Command); err != nil {
		return fmt.Errorf("agent CLI %q not found on PATH: %w", r.Command, err)
	}
	return nil
}

// Run invokes the agent once with the payload and blocks until it exits.
// Returns a non-nil error iff the process exits non-zero (or cannot start).
func (r *Runner) Run(ctx context.Context, payload string) error {
	return runAgentProcess(ctx, r, payload)
}

// invocationArgs builds the full argument list for one invocation:
// fixed args, then the payload, then extra args.
func (r *Runner) invocationArgs(payload string) []string {
	args := make([]string, 0, len(r.Args)+1+len(r.ExtraArgs))
	args = append(args, r.Args...)
	args = append(args, payload)
	args = append(args, r.ExtraArgs...)
	return args
}

func runAgentProcessReal(ctx context.Context, r *Runner, payload string) error {
	cmd := exec.CommandContext(ctx, r.Command, r.invocationArgs(payload)...)
	cmd.Dir = r.Dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = r.stdout()
	cmd.Stderr = r.stderr()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", r.Command, err)
	}
	return nil
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}
