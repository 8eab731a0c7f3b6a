package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ralphloop/ralph/internal/config"
	"github.com/ralphloop/ralph/internal/gitops"
	"github.com/ralphloop/ralph/internal/loop"
	"github.com/ralphloop/ralph/internal/prompt"
	"github.com/ralphloop/ralph/internal/ui"
)

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the loop can run here",
	Long: `Run preflight checks on the current directory.

Validates that the agent CLI is reachable, payload files exist, and the
configuration parses. Optional components are reported as warnings but do
not cause failure.

Examples:
  ralph doctor
  ralph doctor --json`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "Output results as JSON")
	rootCmd.AddCommand(doctorCmd)
}

type doctorCheck struct {
	Name     string `json:"name"`
	Status   string `json:"status"` // "pass", "warn", "fail"
	Detail   string `json:"detail"`
	Required bool   `json:"required"`
}

type doctorOutput struct {
	Checks  []doctorCheck `json:"checks"`
	Result  string        `json:"result"` // "HEALTHY", "UNHEALTHY"
	Summary string        `json:"summary"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, cfgCheck := checkConfig()
	checks := []doctorCheck{
		cfgCheck,
		checkAgentCLI(cfg),
		checkGitCLI(),
		checkWorkTree(),
		checkPayload(cfg, loop.ModeBuild),
		checkPayload(cfg, loop.ModePlan),
		checkHistoryWritable(cfg),
	}

	output := computeDoctorResult(checks)
	w := cmd.OutOrStdout()

	if doctorJSON {
		data, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal doctor output: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	renderDoctorTable(w, output)

	if hasRequiredFailure(output.Checks) {
		return fmt.Errorf("doctor failed: one or more required checks did not pass")
	}

	return nil
}

// checkConfig loads the resolved configuration. A parse failure fails the
// check but still yields defaults so the remaining checks can run.
func checkConfig() (*config.Config, doctorCheck) {
	cfg, err := config.Load(nil)
	if err != nil {
		return config.Default(), doctorCheck{
			Name:     "Config",
			Status:   "fail",
			Detail:   err.Error(),
			Required: true,
		}
	}
	return cfg, doctorCheck{Name: "Config", Status: "pass", Detail: "resolved", Required: true}
}

func checkAgentCLI(cfg *config.Config) doctorCheck {
	name := cfg.Agent.Command
	if name == "" {
		return doctorCheck{Name: "Agent CLI", Status: "fail", Detail: "agent.command is empty", Required: true}
	}
	if _, err := exec.LookPath(name); err != nil {
		return doctorCheck{
			Name:     "Agent CLI",
			Status:   "fail",
			Detail:   fmt.Sprintf("%q not found on PATH", name),
			Required: true,
		}
	}
	return doctorCheck{Name: "Agent CLI", Status: "pass", Detail: fmt.Sprintf("%s available", name), Required: true}
}

func checkGitCLI() doctorCheck {
	if _, err := exec.LookPath("git"); err != nil {
		return doctorCheck{
			Name:     "Git CLI",
			Status:   "warn",
			Detail:   "git not found — commits will not be pushed",
			Required: false,
		}
	}
	return doctorCheck{Name: "Git CLI", Status: "pass", Detail: "git available", Required: false}
}

// checkWorkTree warns when no repository metadata is present. The loop runs
// without one; it just skips publishing.
func checkWorkTree() doctorCheck {
	p := &gitops.Publisher{Dir: "."}
	if !p.Detected() {
		return doctorCheck{
			Name:     "Work Tree",
			Status:   "warn",
			Detail:   "no .git here — publish step will be skipped",
			Required: false,
		}
	}
	return doctorCheck{Name: "Work Tree", Status: "pass", Detail: ".git present", Required: false}
}

func checkPayload(cfg *config.Config, mode loop.Mode) doctorCheck {
	name := fmt.Sprintf("Payload (%s)", mode)
	paths := prompt.Paths{Build: cfg.Prompts.Build, Plan: cfg.Prompts.Plan}
	p, err := prompt.Resolve(".", mode, paths)
	if err != nil {
		return doctorCheck{
			Name:     name,
			Status:   "fail",
			Detail:   fmt.Sprintf("%s missing — run 'ralph init'", paths.PathFor(".", mode)),
			Required: true,
		}
	}
	return doctorCheck{
		Name:     name,
		Status:   "pass",
		Detail:   fmt.Sprintf("%s (%d bytes)", p.Source, len(p.Content)),
		Required: true,
	}
}

// checkHistoryWritable verifies the ledger's parent directory can be created.
func checkHistoryWritable(cfg *config.Config) doctorCheck {
	path := cfg.History.File
	if path == "" {
		return doctorCheck{Name: "History", Status: "warn", Detail: "history disabled (empty path)", Required: false}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return doctorCheck{
			Name:     "History",
			Status:   "warn",
			Detail:   fmt.Sprintf("cannot create %s: %v", dir, err),
			Required: false,
		}
	}
	return doctorCheck{Name: "History", Status: "pass", Detail: path, Required: false}
}

// renderDoctorTable writes the formatted doctor output table.
func renderDoctorTable(w io.Writer, output doctorOutput) {
	fmt.Fprintln(w, "ralph doctor")
	fmt.Fprintln(w, strings.Repeat("─", 12))

	maxName := 0
	for _, c := range output.Checks {
		if len(c.Name) > maxName {
			maxName = len(c.Name)
		}
	}

	for _, c := range output.Checks {
		padding := strings.Repeat(" ", maxName-len(c.Name))
		fmt.Fprintf(w, "%s %s%s  %s\n", ui.StatusIcon(c.Status), c.Name, padding, c.Detail)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", output.Summary)
}

// hasRequiredFailure returns true if any required check has failed.
func hasRequiredFailure(checks []doctorCheck) bool {
	for _, c := range checks {
		if c.Required && c.Status == "fail" {
			return true
		}
	}
	return false
}

// countCheckStatuses tallies pass, fail, and warn counts from checks.
func countCheckStatuses(checks []doctorCheck) (passes, fails, warns int) {
	for _, c := range checks {
		switch c.Status {
		case "pass":
			passes++
		case "fail":
			fails++
		case "warn":
			warns++
		}
	}
	return passes, fails, warns
}

// buildDoctorSummary constructs a human-readable summary from check tallies.
func buildDoctorSummary(passes, fails, warns, total int) string {
	switch {
	case fails == 0 && warns == 0:
		return fmt.Sprintf("%d/%d checks passed", passes, total)
	case fails == 0:
		summary := fmt.Sprintf("%d/%d checks passed, %d warning", passes, total, warns)
		if warns > 1 {
			summary += "s"
		}
		return summary
	default:
		parts := []string{fmt.Sprintf("%d/%d checks passed", passes, total)}
		if warns > 0 {
			w := fmt.Sprintf("%d warning", warns)
			if warns > 1 {
				w += "s"
			}
			parts = append(parts, w)
		}
		parts = append(parts, fmt.Sprintf("%d failed", fails))
		return strings.Join(parts, ", ")
	}
}

func computeDoctorResult(checks []doctorCheck) doctorOutput {
	passes, fails, warns := countCheckStatuses(checks)

	result := "HEALTHY"
	if fails > 0 {
		result = "UNHEALTHY"
	}

	return doctorOutput{
		Checks:  checks,
		Result:  result,
		Summary: buildDoctorSummary(passes, fails, warns, len(checks)),
	}
}
