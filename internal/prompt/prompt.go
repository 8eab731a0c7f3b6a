// Package prompt resolves the instruction payload for a run mode. Payloads
// are project files (PROMPT_BUILD.md / PROMPT_PLAN.md by default) read
// verbatim; the driver never parses or validates their content. The embedded
// defaults shipped with the binary are scaffolding sources for "ralph init",
// never a silent fallback at run time: a missing payload file is fatal.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ralphloop/ralph/embedded"
	"github.com/ralphloop/ralph/internal/loop"
)

// Default payload file names, one per mode.
const (
	DefaultBuildFile = "PROMPT_BUILD.md"
	DefaultPlanFile  = "PROMPT_PLAN.md"
)

// ErrPayloadMissing marks a payload source that could not be located. The
// run command turns it into the fatal precondition exit.
var ErrPayloadMissing = errors.New("payload source missing")

// Payload is a resolved instruction document.
type Payload struct {
	Mode    loop.Mode
	Content string
	// Source is the path the content was read from, for banners and doctor.
	Source string
}

// Paths selects the payload file per mode. Zero values mean the defaults.
type Paths struct {
	Build string
	Plan  string
}

// PathFor returns the payload path for a mode, relative paths resolved
// against dir.
func (p Paths) PathFor(dir string, mode loop.Mode) string {
	name := p.Build
	if mode == loop.ModePlan {
		name = p.Plan
	}
	if name == "" {
		name = DefaultBuildFile
		if mode == loop.ModePlan {
			name = DefaultPlanFile
		}
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// Resolve reads the payload for a mode. A missing or unreadable file returns
// an error wrapping ErrPayloadMissing with the path it looked at.
func Resolve(dir string, mode loop.Mode, paths Paths) (Payload, error) {
	path := paths.PathFor(dir, mode)
	data, err := os.ReadFile(path)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %s (run 'ralph init' to scaffold prompt files): %v", ErrPayloadMissing, path, err)
	}
	return Payload{Mode: mode, Content: string(data), Source: path}, nil
}

// Embedded returns the default payload content shipped in the binary for a
// mode. Used by init and prompts inspection, not by the run loop.
func Embedded(mode loop.Mode) string {
	if mode == loop.ModePlan {
		return embedded.PromptPlan
	}
	return embedded.PromptBuild
}
