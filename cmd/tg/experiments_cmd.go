package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/toggles/internal/ui"
)

var variantCmd = &cobra.Command{
	Use:     "variant <test> <subject>",
	Short:   "Assign a subject to a variant of an A/B test",
	Long:    "Assign <subject> to one of --variants for the ab_test_<test> gate. While the gate is off every subject gets the first variant.",
	GroupID: "experiments",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		variants, _ := cmd.Flags().GetStringSlice("variants")
		res, err := flagsClient.GetVariant(context.Background(), args[0], variants, args[1])
		if err != nil {
			return fmt.Errorf("assigning variant: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), res)
		}
		state := ui.RenderState(res.Active)
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s %s)\n", ui.RenderAccent(res.Variant), res.SubjectID, res.Flag, state)
		return nil
	},
}

var usageCmd = &cobra.Command{
	Use:     "usage",
	Short:   "Show which flags are being read",
	GroupID: "experiments",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stale, _ := cmd.Flags().GetDuration("stale")
		entries, err := flagsClient.Usage(context.Background(), stale)
		if err != nil {
			return fmt.Errorf("listing usage: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMuted("no recent flag reads"))
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FLAG\tREADS\tON\tLAST\tIDLE")
		for _, e := range entries {
			idle := (time.Duration(e.IdleSecs) * time.Second).String()
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", e.Flag, e.Reads, e.EnabledReads, ui.RenderState(e.LastValue), idle)
		}
		return tw.Flush()
	},
}

func init() {
	variantCmd.Flags().StringSlice("variants", []string{"control", "treatment"}, "comma-separated variants; the first is the control")
	usageCmd.Flags().Duration("stale", 5*time.Minute, "hide flags not read for this long")
}
