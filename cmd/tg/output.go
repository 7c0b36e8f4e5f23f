package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/toggles/internal/model"
	"github.com/alfredjeanlab/toggles/internal/ui"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printFlag(w io.Writer, f *model.Flag) error {
	if jsonOutput {
		return printJSON(w, f)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", f.Name)
	fmt.Fprintf(tw, "State:\t%s\n", ui.RenderState(f.Enabled))
	fmt.Fprintf(tw, "Source:\t%s\n", ui.RenderSource(f.Source))
	if f.Original != nil {
		fmt.Fprintf(tw, "Reverts to:\t%s (%s)\n", ui.RenderState(f.Original.Enabled), f.Original.Source)
	}
	if f.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", f.Description)
	}
	if !f.LastUpdated.IsZero() {
		fmt.Fprintf(tw, "Updated:\t%s\n", f.LastUpdated.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func printFlagTable(w io.Writer, fs []model.Flag) error {
	if jsonOutput {
		return printJSON(w, fs)
	}
	if len(fs) == 0 {
		fmt.Fprintln(w, ui.RenderMuted("no flags"))
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tSOURCE\tUPDATED")
	for _, f := range fs {
		updated := ""
		if !f.LastUpdated.IsZero() {
			updated = f.LastUpdated.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Name, ui.RenderState(f.Enabled), ui.RenderSource(f.Source), updated)
	}
	return tw.Flush()
}

// parseState accepts the usual spellings of a boolean flag state.
func parseState(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "enable", "enabled", "1", "yes":
		return true, nil
	case "off", "false", "disable", "disabled", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid state %q (want on or off)", s)
}
