package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestEveryCommandHasGroup(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		if c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		if c.GroupID == "" {
			t.Errorf("command %q has no group", c.Name())
		}
	}
}

func TestColorizeHelpOutput_NoColor(t *testing.T) {
	in := "Flags:\n  list        List flags\n\nGlobal Flags:\n      --url string   toggles server URL (default \"http://localhost:8080\")\n"
	if got := colorizeHelpOutput(in); got != in {
		t.Errorf("without color the help text must be unchanged:\n%s", got)
	}
}

func TestRootHelp_ListsGroups(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	if err := rootCmd.Usage(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Flags:", "Experiments:", "System:", "override", "variant", "serve"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}
