package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ralph",
	Short: "Iteration driver for AI coding-agent CLIs",
	Long: `ralph drives an external AI coding agent through repeated iterations
against a project, pushing the commits it makes along the way.

Each iteration invokes the agent once with a fixed instruction payload
(PROMPT_BUILD.md or PROMPT_PLAN.md). The loop stops when the iteration
cap is reached, the agent fails, a stop file appears, or you interrupt it.

Get Started:
  init         Scaffold prompt files and a starter project
  run          Start the iteration loop
  doctor       Check that the agent CLI, git, and payloads are in place

Inspection:
  status       Summarize past runs from the history ledger
  prompts      Show the resolved instruction payloads
  config       Print the resolved configuration`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		syncConfigFlagToEnv()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: .ralph/config.yaml)")
}

// GetVerbose returns the verbose flag value for use by subcommands.
func GetVerbose() bool {
	return verbose
}

// GetConfigFile returns the config file path for use by subcommands.
func GetConfigFile() string {
	return cfgFile
}

// VerbosePrintf prints only when verbose mode is enabled.
func VerbosePrintf(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format, args...)
	}
}

func syncConfigFlagToEnv() {
	path := strings.TrimSpace(GetConfigFile())
	if path == "" {
		return
	}
	_ = os.Setenv("RALPH_CONFIG", path)
}
