// Package ui provides terminal styling for ralph CLI output.
package ui

import "github.com/charmbracelet/lipgloss"

// Semantic status colors, adaptive for light/dark terminals.
var (
	ColorPass = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	ColorWarn = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	ColorFail = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	ColorMute = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
)

// Status styles, consistent across commands.
var (
	PassStyle  = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle  = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle  = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle = lipgloss.NewStyle().Foreground(ColorMute)

	// HeaderStyle for section headers and iteration banners.
	HeaderStyle = lipgloss.NewStyle().Bold(true)
)

// Status icons.
const (
	IconPass = "✓"
	IconWarn = "!"
	IconFail = "✗"
)

// StatusIcon returns the styled icon for a pass/warn/fail status string.
func StatusIcon(status string) string {
	switch status {
	case "pass":
		return PassStyle.Render(IconPass)
	case "warn":
		return WarnStyle.Render(IconWarn)
	case "fail":
		return FailStyle.Render(IconFail)
	}
	return "?"
}
