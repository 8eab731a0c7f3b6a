// Package loop implements the ralph iteration driver: a strictly sequential
// loop that invokes an external coding agent once per iteration and publishes
// any commits the agent made between iterations.
//
// The loop owns its iteration counter and talks to the outside world through
// two narrow collaborators, AgentRunner and Publisher, so termination logic
// can be tested without spawning processes or touching a real repository.
package loop

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// Mode selects which instruction payload drives the agent.
type Mode string

const (
	// ModeBuild is the default mode: the agent implements work items.
	ModeBuild Mode = "build"
	// ModePlan drives the agent through planning instead of building.
	ModePlan Mode = "plan"
)

// Config is the immutable run configuration, constructed once at process
// start from command-line arguments and the config file.
type Config struct {
	Mode Mode

	// MaxIterations caps the number of agent invocations. 0 means unlimited:
	// the loop runs until the agent fails or the process is interrupted.
	MaxIterations int

	// Payload is the instruction content passed verbatim to the agent on
	// every iteration. PayloadSource names where it came from, for banners.
	Payload       string
	PayloadSource string

	// Delay is an optional pause between completed iterations.
	Delay time.Duration

	// StopFile, when non-empty, is checked before each iteration; its
	// presence ends the loop normally.
	StopFile string
}

// AgentRunner invokes the external agent process with a payload and blocks
// until it exits. A nil error means the process exited zero. Implementations
// must not retry: the loop treats any error as fatal.
type AgentRunner interface {
	Run(ctx context.Context, payload string) error
}

// Publisher pushes commits the agent created. Detected reports whether
// version-control metadata is present at all; when it is not, the loop skips
// the publish step entirely. Publish failures are never fatal to the loop.
type Publisher interface {
	Detected() bool
	HasPendingChanges(ctx context.Context) (bool, error)
	Publish(ctx context.Context) error
}

// Outcome classifies how an iteration ended, for the run ledger.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeAgentFailed Outcome = "agent-failed"
	OutcomeCanceled    Outcome = "canceled"
)

// IterationResult describes one completed loop pass. It is handed to the
// Observer callback and never influences loop control flow.
type IterationResult struct {
	Iteration        int
	Mode             Mode
	StartedAt        time.Time
	FinishedAt       time.Time
	Outcome          Outcome
	PublishAttempted bool
	PublishError     string
}

// AgentError wraps the agent process failure that stopped the loop, keeping
// the iteration number for the operator-facing message.
type AgentError struct {
	Iteration int
	Err       error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent invocation failed on iteration %d: %v", e.Iteration, e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }

// Loop drives the iteration cycle. Agent is required; Publisher may be nil
// when publishing is disabled. Out defaults to os.Stdout.
type Loop struct {
	Config    Config
	Agent     AgentRunner
	Publisher Publisher

	Out     io.Writer
	Verbose bool

	// Observer receives one IterationResult per agent invocation. Errors in
	// the observer are the caller's problem; the loop never sees them.
	Observer func(IterationResult)

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// Run executes the loop until the cap is reached, the stop file appears, the
// context is canceled, or the agent fails. It returns nil on every normal
// termination and an *AgentError when an invocation exits non-zero.
func (l *Loop) Run(ctx context.Context) error {
	out := l.out()

	iteration := 0
	for {
		iteration++

		if l.Config.MaxIterations > 0 && iteration > l.Config.MaxIterations {
			fmt.Fprintf(out, "\nLoop complete: %d iteration(s) finished.\n", l.Config.MaxIterations)
			return nil
		}
		if l.stopFileSet() {
			fmt.Fprintf(out, "\nStop file %s present. Loop complete after %d iteration(s).\n", l.Config.StopFile, iteration-1)
			return nil
		}
		if ctx.Err() != nil {
			fmt.Fprintf(out, "\nInterrupted. Loop stopped after %d iteration(s).\n", iteration-1)
			return nil
		}
		if iteration > 1 && l.Config.Delay > 0 {
			l.verbosef("Sleeping %s before iteration %d...\n", l.Config.Delay, iteration)
			l.doSleep(ctx, l.Config.Delay)
		}

		l.printBanner(out, iteration)

		started := l.clock()
		err := l.Agent.Run(ctx, l.Config.Payload)
		finished := l.clock()

		if err != nil {
			if ctx.Err() != nil {
				l.record(IterationResult{Iteration: iteration, Mode: l.Config.Mode, StartedAt: started, FinishedAt: finished, Outcome: OutcomeCanceled})
				fmt.Fprintf(out, "\nInterrupted during iteration %d. Loop stopped.\n", iteration)
				return nil
			}
			l.record(IterationResult{Iteration: iteration, Mode: l.Config.Mode, StartedAt: started, FinishedAt: finished, Outcome: OutcomeAgentFailed})
			fmt.Fprintf(out, "Iteration %d failed after %s.\n", iteration, finished.Sub(started).Round(time.Second))
			return &AgentError{Iteration: iteration, Err: err}
		}

		fmt.Fprintf(out, "Iteration %d passed in %s.\n", iteration, finished.Sub(started).Round(time.Second))

		attempted, pubErr := l.publish(ctx, out)
		result := IterationResult{
			Iteration:        iteration,
			Mode:             l.Config.Mode,
			StartedAt:        started,
			FinishedAt:       finished,
			Outcome:          OutcomeOK,
			PublishAttempted: attempted,
		}
		if pubErr != nil {
			result.PublishError = pubErr.Error()
		}
		l.record(result)
	}
}

// publish runs the conditional publish step. It reports whether a push was
// attempted and the error, if any. Errors here are warnings by contract: the
// loop always continues.
func (l *Loop) publish(ctx context.Context, out io.Writer) (bool, error) {
	if l.Publisher == nil || !l.Publisher.Detected() {
		l.verbosef("No version control detected; skipping publish.\n")
		return false, nil
	}

	pending, err := l.Publisher.HasPendingChanges(ctx)
	if err != nil {
		fmt.Fprintf(out, "Warning: could not check for pending changes: %v\n", err)
		return false, err
	}
	if !pending {
		l.verbosef("Nothing to publish.\n")
		return false, nil
	}

	if err := l.Publisher.Publish(ctx); err != nil {
		fmt.Fprintf(out, "Warning: publish failed: %v (continuing)\n", err)
		return true, err
	}
	fmt.Fprintln(out, "Published pending commits.")
	return true, nil
}

func (l *Loop) printBanner(out io.Writer, iteration int) {
	capLabel := "unlimited"
	if l.Config.MaxIterations > 0 {
		capLabel = fmt.Sprintf("%d", l.Config.MaxIterations)
	}
	fmt.Fprintf(out, "\n=== Ralph %s: iteration %d (cap %s) ===\n", l.Config.Mode, iteration, capLabel)
}

func (l *Loop) stopFileSet() bool {
	if l.Config.StopFile == "" {
		return false
	}
	info, err := os.Stat(l.Config.StopFile)
	return err == nil && !info.IsDir()
}

func (l *Loop) record(result IterationResult) {
	if l.Observer != nil {
		l.Observer(result)
	}
}

func (l *Loop) out() io.Writer {
	if l.Out != nil {
		return l.Out
	}
	return os.Stdout
}

func (l *Loop) verbosef(format string, args ...interface{}) {
	if l.Verbose {
		fmt.Fprintf(l.out(), format, args...)
	}
}

func (l *Loop) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now()
}

func (l *Loop) doSleep(ctx context.Context, d time.Duration) {
	if l.sleep != nil {
		l.sleep(ctx, d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
