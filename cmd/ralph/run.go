package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ralphloop/ralph/internal/agent"
	"github.com/ralphloop/ralph/internal/config"
	"github.com/ralphloop/ralph/internal/gitops"
	"github.com/ralphloop/ralph/internal/history"
	"github.com/ralphloop/ralph/internal/loop"
	"github.com/ralphloop/ralph/internal/prompt"
	"github.com/ralphloop/ralph/internal/ui"
)

var (
	runAgent  string
	runNoPush bool
	runDelay  time.Duration
	runDir    string
)

var runCmd = &cobra.Command{
	Use:   "run [plan] [N]",
	Short: "Start the iteration loop",
	Long: `Run the agent loop until the iteration cap is reached or the agent fails.

Positional tokens may appear in any order:
  plan    Use PLAN mode (default: BUILD)
  N       Iteration cap, a non-negative integer (0 or absent: unlimited)

Each iteration invokes the agent CLI once with the mode's payload file,
then pushes any commits the agent made. A failed agent invocation stops
the loop with exit code 1. A failed push is a warning; the loop continues.

Examples:
  ralph run            # BUILD mode, unlimited iterations
  ralph run 5          # BUILD mode, exactly 5 iterations
  ralph run plan 3     # PLAN mode, 3 iterations
  ralph run 3 plan     # same: token order does not matter`,
	Args: cobra.MaximumNArgs(2),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runAgent, "agent", "", "Agent CLI to invoke (default from config: claude)")
	runCmd.Flags().BoolVar(&runNoPush, "no-push", false, "Skip the publish step entirely")
	runCmd.Flags().DurationVar(&runDelay, "delay", 0, "Pause between iterations")
	runCmd.Flags().StringVarP(&runDir, "dir", "C", ".", "Project directory to run in")
	rootCmd.AddCommand(runCmd)
}

// parseRunArgs interprets the positional tokens of ralph run. Tokens are
// order-independent: the literal "plan" (or "build") selects the mode and a
// non-negative integer sets the iteration cap. Anything else is a usage error.
func parseRunArgs(args []string) (loop.Mode, int, error) {
	mode := loop.ModeBuild
	maxIterations := 0
	modeSet := false
	capSet := false

	for _, arg := range args {
		switch arg {
		case "plan", "build":
			if modeSet {
				return "", 0, fmt.Errorf("mode given twice: %q", arg)
			}
			modeSet = true
			if arg == "plan" {
				mode = loop.ModePlan
			}
		default:
			n, err := strconv.Atoi(arg)
			if err != nil || n < 0 {
				return "", 0, fmt.Errorf("unknown argument %q: expected \"plan\" or a non-negative iteration cap", arg)
			}
			if capSet {
				return "", 0, fmt.Errorf("iteration cap given twice: %q", arg)
			}
			capSet = true
			maxIterations = n
		}
	}

	return mode, maxIterations, nil
}

// runFlagOverrides translates changed run flags into a config overlay.
func runFlagOverrides(cmd *cobra.Command) *config.Config {
	overrides := &config.Config{}
	if cmd.Flags().Changed("agent") {
		overrides.Agent.Command = runAgent
	}
	if runNoPush {
		overrides.Push.Disabled = true
	}
	if cmd.Flags().Changed("delay") {
		overrides.Loop.Delay = runDelay.String()
	}
	if GetVerbose() {
		overrides.Verbose = true
	}
	return overrides
}

// projectPath resolves a config path against the project directory unless it
// is absolute.
func projectPath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func runRun(cmd *cobra.Command, args []string) error {
	mode, maxIterations, err := parseRunArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(runFlagOverrides(cmd))
	if err != nil {
		return err
	}

	dir := runDir
	if dir == "" {
		dir = "."
	}

	// Payload resolution is the startup contract: a missing payload file is
	// fatal before the agent is ever invoked.
	payload, err := prompt.Resolve(dir, mode, prompt.Paths{Build: cfg.Prompts.Build, Plan: cfg.Prompts.Plan})
	if err != nil {
		return err
	}

	runner := &agent.Runner{
		Command:   cfg.Agent.Command,
		Args:      cfg.Agent.Args,
		ExtraArgs: cfg.Agent.ExtraArgs,
		Dir:       dir,
	}
	if err := runner.Preflight(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	var publisher loop.Publisher
	if !cfg.Push.Disabled {
		publisher = &gitops.Publisher{
			Dir:             dir,
			Remote:          cfg.Push.Remote,
			Branch:          cfg.Push.Branch,
			CommandTimeout:  cfg.PushTimeout(),
			MaxRetryElapsed: cfg.PushMaxRetryElapsed(),
		}
	}

	ledger := &history.Ledger{Path: projectPath(dir, cfg.History.File)}
	runID := history.NewRunID(time.Now())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(out, ui.MutedStyle.Render(fmt.Sprintf("ralph %s · agent %s · payload %s", mode, cfg.Agent.Command, payload.Source)))

	l := &loop.Loop{
		Config: loop.Config{
			Mode:          mode,
			MaxIterations: maxIterations,
			Payload:       payload.Content,
			PayloadSource: payload.Source,
			Delay:         cfg.DelayDuration(),
			StopFile:      projectPath(dir, cfg.Loop.StopFile),
		},
		Agent:     runner,
		Publisher: publisher,
		Out:       out,
		Verbose:   cfg.Verbose,
		Observer: func(r loop.IterationResult) {
			entry := history.Entry{
				RunID:            runID,
				Mode:             string(r.Mode),
				Iteration:        r.Iteration,
				StartedAt:        r.StartedAt.UTC().Format(time.RFC3339),
				FinishedAt:       r.FinishedAt.UTC().Format(time.RFC3339),
				DurationMS:       r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
				Outcome:          string(r.Outcome),
				PublishAttempted: r.PublishAttempted,
				PublishError:     r.PublishError,
			}
			if err := ledger.Append(entry); err != nil {
				fmt.Fprintf(out, "Warning: could not record iteration in history: %v\n", err)
			}
		},
	}

	return l.Run(ctx)
}
