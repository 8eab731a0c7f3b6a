// Package embedded provides the prompt defaults and project template shipped
// in the ralph binary. These are scaffolding sources for "ralph init"; the
// run loop always reads payloads from the project directory.
package embedded

import "embed"

// PromptBuild is the default BUILD-mode instruction payload.
//
//go:embed template/PROMPT_BUILD.md
var PromptBuild string

// PromptPlan is the default PLAN-mode instruction payload.
//
//go:embed template/PROMPT_PLAN.md
var PromptPlan string

// TemplateFS contains the full project template extracted by "ralph init".
// Use fs.WalkDir to write files to disk.
//
//go:embed all:template
var TemplateFS embed.FS

// TemplateRoot is the directory inside TemplateFS holding the template.
const TemplateRoot = "template"
