package ui

import (
	"strings"
	"testing"

	"github.com/alfredjeanlab/toggles/internal/model"
)

func TestShouldUseColor(t *testing.T) {
	for _, tc := range []struct {
		name     string
		noColor  string
		force    string
		clicolor string
		want     bool
	}{
		{"NO_COLOR wins over force", "1", "1", "", false},
		{"force without tty", "", "1", "", true},
		{"CLICOLOR=0", "", "", "0", false},
		{"no tty under test", "", "", "", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tc.noColor)
			t.Setenv("CLICOLOR_FORCE", tc.force)
			t.Setenv("CLICOLOR", tc.clicolor)
			if got := ShouldUseColor(); got != tc.want {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	saved := noColor
	t.Cleanup(func() { noColor = saved })

	noColor = false
	if got := RenderState(true); !strings.Contains(got, "\x1b[38;5;114m") || !strings.Contains(got, "on") {
		t.Errorf("RenderState(true) = %q", got)
	}
	if got := RenderSource(model.SourceOverride); !strings.Contains(got, "\x1b[38;5;215m") {
		t.Errorf("RenderSource(override) = %q", got)
	}
	if got := RenderSource(model.SourceRemote); !strings.Contains(got, "\x1b[38;5;245m") {
		t.Errorf("RenderSource(remote) = %q", got)
	}

	ForceNoColor()
	for _, got := range []string{RenderAccent("x"), RenderMuted("x"), RenderCommand("x")} {
		if got != "x" {
			t.Errorf("expected plain output, got %q", got)
		}
	}
	if got := RenderState(false); got != "off" {
		t.Errorf("RenderState(false) = %q", got)
	}
}
