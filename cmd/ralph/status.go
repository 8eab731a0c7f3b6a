package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ralphloop/ralph/internal/config"
	"github.com/ralphloop/ralph/internal/history"
	"github.com/ralphloop/ralph/internal/ui"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize past runs",
	Long: `Display aggregate statistics from the run history ledger.

Shows total iterations, run count, outcome breakdown, publish failures,
and the most recent iteration.

Examples:
  ralph status
  ralph status --json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output results as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}

	ledger := &history.Ledger{Path: cfg.History.File}
	entries, err := ledger.Read()
	if err != nil {
		return err
	}
	summary := history.Summarize(entries)

	out := cmd.OutOrStdout()

	if statusJSON {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal status: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if summary.TotalIterations == 0 {
		fmt.Fprintln(out, "No runs recorded yet. Start one with 'ralph run'.")
		return nil
	}

	fmt.Fprintf(out, "Runs:       %d\n", summary.Runs)
	fmt.Fprintf(out, "Iterations: %d\n", summary.TotalIterations)
	for _, outcome := range []string{"ok", "agent-failed", "canceled"} {
		if n := summary.Outcomes[outcome]; n > 0 {
			fmt.Fprintf(out, "  %-13s %d\n", outcome+":", n)
		}
	}
	if summary.PublishFailures > 0 {
		fmt.Fprintf(out, "Publish failures: %s\n", ui.WarnStyle.Render(fmt.Sprintf("%d", summary.PublishFailures)))
	}
	if last := summary.Last; last != nil {
		fmt.Fprintf(out, "Last: %s iteration %d (%s) at %s\n", last.Mode, last.Iteration, last.Outcome, last.FinishedAt)
	}
	return nil
}
