// Package ui renders tg CLI output with ANSI colors when the terminal
// supports them.
package ui

import (
	"fmt"

	"github.com/alfredjeanlab/toggles/internal/model"
)

// ANSI256 color codes.
const (
	colorAccent   = 74  // blue
	colorCmd      = 250 // light gray
	colorMuted    = 245 // medium gray
	colorOn       = 114 // green
	colorOff      = 203 // red
	colorOverride = 215 // orange
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderState returns "on" in green or "off" in red.
func RenderState(enabled bool) string {
	if enabled {
		return render(colorOn, "on")
	}
	return render(colorOff, "off")
}

// RenderSource colors a flag source; overrides stand out, everything else
// is muted.
func RenderSource(src model.Source) string {
	if src == model.SourceOverride {
		return render(colorOverride, src.String())
	}
	return render(colorMuted, src.String())
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// Init disables color output unless ShouldUseColor allows it.
func Init() {
	if !ShouldUseColor() {
		ForceNoColor()
	}
}
