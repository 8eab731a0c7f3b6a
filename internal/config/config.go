// Package config provides configuration management for ralph.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (RALPH_*)
// 3. Project config (.ralph/config.yaml in cwd)
// 4. Home config (~/.ralph/config.yaml)
// 5. Defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all ralph configuration.
type Config struct {
	// Agent settings control how the external coding agent is invoked.
	Agent AgentConfig `yaml:"agent" json:"agent"`

	// Prompts selects the payload file per mode.
	Prompts PromptsConfig `yaml:"prompts" json:"prompts"`

	// Push settings control commit publication between iterations.
	Push PushConfig `yaml:"push" json:"push"`

	// Loop settings tune iteration pacing and the stop file.
	Loop LoopConfig `yaml:"loop" json:"loop"`

	// History settings locate the run ledger.
	History HistoryConfig `yaml:"history" json:"history"`

	// Verbose enables verbose output.
	Verbose bool `yaml:"verbose" json:"verbose"`
}

// AgentConfig holds agent invocation settings.
type AgentConfig struct {
	// Command is the agent CLI resolved on PATH. Default: "claude".
	Command string `yaml:"command" json:"command"`
	// Args are fixed arguments placed before the payload. Default: ["-p"].
	Args []string `yaml:"args" json:"args"`
	// ExtraArgs are appended after the payload.
	ExtraArgs []string `yaml:"extra_args" json:"extra_args"`
}

// PromptsConfig holds per-mode payload file paths (relative to the project
// directory unless absolute).
type PromptsConfig struct {
	Build string `yaml:"build" json:"build"`
	Plan  string `yaml:"plan" json:"plan"`
}

// PushConfig holds publish settings.
type PushConfig struct {
	// Disabled turns the publish step off entirely.
	Disabled bool `yaml:"disabled" json:"disabled"`
	// Remote and Branch select the push target; both empty means plain
	// "git push" using the configured upstream.
	Remote string `yaml:"remote" json:"remote"`
	Branch string `yaml:"branch" json:"branch"`
	// Timeout bounds each git command, as a duration string. Default "2m".
	Timeout string `yaml:"timeout" json:"timeout"`
	// MaxRetryElapsed bounds the push retry window. Default "15s".
	MaxRetryElapsed string `yaml:"max_retry_elapsed" json:"max_retry_elapsed"`
}

// LoopConfig holds iteration pacing settings.
type LoopConfig struct {
	// Delay is the pause between completed iterations. Default "0s".
	Delay string `yaml:"delay" json:"delay"`
	// StopFile ends the loop cleanly when present. Default ".ralph/STOP".
	StopFile string `yaml:"stop_file" json:"stop_file"`
}

// HistoryConfig locates the run ledger.
type HistoryConfig struct {
	// File is the JSONL ledger path. Default ".ralph/history.jsonl".
	File string `yaml:"file" json:"file"`
}

// Default config values.
const (
	defaultAgentCommand = "claude"
	defaultStopFile     = ".ralph/STOP"
	defaultHistoryFile  = ".ralph/history.jsonl"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Command: defaultAgentCommand,
			Args:    []string{"-p"},
		},
		Prompts: PromptsConfig{
			Build: "PROMPT_BUILD.md",
			Plan:  "PROMPT_PLAN.md",
		},
		Push: PushConfig{
			Timeout:         "2m",
			MaxRetryElapsed: "15s",
		},
		Loop: LoopConfig{
			Delay:    "0s",
			StopFile: defaultStopFile,
		},
		History: HistoryConfig{
			File: defaultHistoryFile,
		},
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults. Flag overrides are
// applied by the caller through merge-friendly Config values.
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	homeConfig, err := loadFromPath(homeConfigPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	projectConfig, err := loadFromPath(projectConfigPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, nil
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ralph", "config.yaml")
}

// projectConfigPath returns the project config path.
func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("RALPH_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".ralph", "config.yaml")
}

// loadFromPath loads config from a YAML file.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("RALPH_AGENT_COMMAND"); v != "" {
		cfg.Agent.Command = v
	}
	if v := os.Getenv("RALPH_PROMPT_BUILD"); v != "" {
		cfg.Prompts.Build = v
	}
	if v := os.Getenv("RALPH_PROMPT_PLAN"); v != "" {
		cfg.Prompts.Plan = v
	}
	if v := os.Getenv("RALPH_NO_PUSH"); v == "true" || v == "1" {
		cfg.Push.Disabled = true
	}
	if v := os.Getenv("RALPH_PUSH_REMOTE"); v != "" {
		cfg.Push.Remote = v
	}
	if v := os.Getenv("RALPH_PUSH_BRANCH"); v != "" {
		cfg.Push.Branch = v
	}
	if v := os.Getenv("RALPH_LOOP_DELAY"); v != "" {
		cfg.Loop.Delay = v
	}
	if v := os.Getenv("RALPH_STOP_FILE"); v != "" {
		cfg.Loop.StopFile = v
	}
	if v := os.Getenv("RALPH_HISTORY_FILE"); v != "" {
		cfg.History.File = v
	}
	if v := os.Getenv("RALPH_VERBOSE"); v == "true" || v == "1" {
		cfg.Verbose = true
	}
	return cfg
}

// mergeStr overwrites dst with src when src is non-empty.
func mergeStr(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// merge merges src into dst, with src values taking precedence.
func merge(dst, src *Config) *Config {
	mergeAgent(&dst.Agent, &src.Agent)
	mergePrompts(&dst.Prompts, &src.Prompts)
	mergePush(&dst.Push, &src.Push)
	mergeLoop(&dst.Loop, &src.Loop)
	mergeStr(&dst.History.File, src.History.File)
	if src.Verbose {
		dst.Verbose = true
	}
	return dst
}

func mergeAgent(dst, src *AgentConfig) {
	mergeStr(&dst.Command, src.Command)
	if src.Args != nil {
		dst.Args = src.Args
	}
	if src.ExtraArgs != nil {
		dst.ExtraArgs = src.ExtraArgs
	}
}

func mergePrompts(dst, src *PromptsConfig) {
	mergeStr(&dst.Build, src.Build)
	mergeStr(&dst.Plan, src.Plan)
}

func mergePush(dst, src *PushConfig) {
	if src.Disabled {
		dst.Disabled = true
	}
	mergeStr(&dst.Remote, src.Remote)
	mergeStr(&dst.Branch, src.Branch)
	mergeStr(&dst.Timeout, src.Timeout)
	mergeStr(&dst.MaxRetryElapsed, src.MaxRetryElapsed)
}

func mergeLoop(dst, src *LoopConfig) {
	mergeStr(&dst.Delay, src.Delay)
	mergeStr(&dst.StopFile, src.StopFile)
}

// Duration helpers parse the string-typed duration fields, falling back to
// the given default on empty or malformed values.

// DelayDuration returns the parsed loop delay.
func (c *Config) DelayDuration() time.Duration {
	return parseDuration(c.Loop.Delay, 0)
}

// PushTimeout returns the parsed git command timeout.
func (c *Config) PushTimeout() time.Duration {
	return parseDuration(c.Push.Timeout, 2*time.Minute)
}

// PushMaxRetryElapsed returns the parsed push retry window.
func (c *Config) PushMaxRetryElapsed() time.Duration {
	return parseDuration(c.Push.MaxRetryElapsed, 15*time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if strings.TrimSpace(s) == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d < 0 {
		return def
	}
	return d
}
