package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ralphloop/ralph/embedded"
	"github.com/ralphloop/ralph/internal/ui"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Scaffold prompt files and a starter project",
	Long: `Extract the embedded project template into a directory (default: current).

Creates the instruction payloads (PROMPT_BUILD.md, PROMPT_PLAN.md), agent
guidance (AGENTS.md), a starter config (.ralph/config.yaml), and a minimal
Python project layout for the agent to build in.

Existing files are never overwritten unless --force is given.

Examples:
  ralph init
  ralph init myproject
  ralph init --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) == 1 {
		target = args[0]
	}

	out := cmd.OutOrStdout()
	created, skipped, err := extractTemplate(target, initForce, func(path string) {
		fmt.Fprintf(out, "  %s %s\n", ui.PassStyle.Render("+"), path)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nScaffolded %d file(s)", created)
	if skipped > 0 {
		fmt.Fprintf(out, ", skipped %d existing (use --force to overwrite)", skipped)
	}
	fmt.Fprintln(out, ".")
	fmt.Fprintln(out, "Next: review PROMPT_BUILD.md, then start the loop with 'ralph run'.")
	return nil
}

// extractTemplate writes the embedded template tree under target, calling
// onCreate for each file written. Existing files are skipped unless force is
// set. Returns created and skipped counts.
func extractTemplate(target string, force bool, onCreate func(path string)) (created, skipped int, err error) {
	err = fs.WalkDir(embedded.TemplateFS, embedded.TemplateRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(embedded.TemplateRoot, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		dest := filepath.Join(target, rel)

		if d.IsDir() {
			return os.MkdirAll(dest, 0755)
		}

		if !force {
			if _, err := os.Stat(dest); err == nil {
				skipped++
				return nil
			}
		}

		data, err := embedded.TemplateFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read embedded %s: %w", path, err)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(dest, data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
		created++
		if onCreate != nil {
			onCreate(dest)
		}
		return nil
	})
	return created, skipped, err
}
