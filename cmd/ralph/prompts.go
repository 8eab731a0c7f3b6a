package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ralphloop/ralph/internal/config"
	"github.com/ralphloop/ralph/internal/loop"
	"github.com/ralphloop/ralph/internal/prompt"
	"github.com/ralphloop/ralph/internal/ui"
)

var promptsEmbedded bool

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Inspect the instruction payloads",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List payload sources per mode",
	RunE:  runPromptsList,
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <build|plan>",
	Short: "Print the resolved payload for a mode",
	Long: `Print the payload content that ralph run would pass to the agent.

With --embedded, print the default shipped in the binary instead of the
project file.

Examples:
  ralph prompts show build
  ralph prompts show plan --embedded`,
	Args: cobra.ExactArgs(1),
	RunE: runPromptsShow,
}

func init() {
	promptsShowCmd.Flags().BoolVar(&promptsEmbedded, "embedded", false, "Show the embedded default instead of the project file")
	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsShowCmd)
	rootCmd.AddCommand(promptsCmd)
}

func modeFromArg(arg string) (loop.Mode, error) {
	switch arg {
	case "build":
		return loop.ModeBuild, nil
	case "plan":
		return loop.ModePlan, nil
	}
	return "", fmt.Errorf("unknown mode %q: expected \"build\" or \"plan\"", arg)
}

func runPromptsList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	paths := prompt.Paths{Build: cfg.Prompts.Build, Plan: cfg.Prompts.Plan}

	out := cmd.OutOrStdout()
	for _, mode := range []loop.Mode{loop.ModeBuild, loop.ModePlan} {
		path := paths.PathFor(".", mode)
		status := ui.PassStyle.Render("ok")
		if _, err := prompt.Resolve(".", mode, paths); err != nil {
			status = ui.FailStyle.Render("missing")
		}
		fmt.Fprintf(out, "%-6s %s (%s)\n", mode, path, status)
	}
	return nil
}

func runPromptsShow(cmd *cobra.Command, args []string) error {
	mode, err := modeFromArg(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if promptsEmbedded {
		fmt.Fprint(out, prompt.Embedded(mode))
		return nil
	}

	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	p, err := prompt.Resolve(".", mode, prompt.Paths{Build: cfg.Prompts.Build, Plan: cfg.Prompts.Plan})
	if err != nil {
		return err
	}
	fmt.Fprint(out, p.Content)
	return nil
}
