package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/toggles/internal/model"
	"github.com/alfredjeanlab/toggles/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List flags",
	GroupID: "flags",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		fs, err := flagsClient.ListFlags(context.Background(), model.Source(source))
		if err != nil {
			return fmt.Errorf("listing flags: %w", err)
		}
		return printFlagTable(cmd.OutOrStdout(), fs)
	},
}

var getCmd = &cobra.Command{
	Use:     "get <name>",
	Short:   "Show a flag",
	GroupID: "flags",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := flagsClient.GetFlag(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting flag: %w", err)
		}
		return printFlag(cmd.OutOrStdout(), f)
	},
}

var checkCmd = &cobra.Command{
	Use:     "check <key>",
	Short:   "Evaluate a feature (or, with --experimental, an experimental) flag",
	Long:    "Evaluate feature_<key>, or experimental_<key> with --experimental. Exits 1 when the flag is off.",
	GroupID: "flags",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		experimental, _ := cmd.Flags().GetBool("experimental")
		eval := flagsClient.IsFeatureEnabled
		if experimental {
			eval = flagsClient.IsExperimentalEnabled
		}
		res, err := eval(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("evaluating flag: %w", err)
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Flag, ui.RenderState(res.Enabled))
		}
		if !res.Enabled {
			os.Exit(1)
		}
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:     "set <name> <on|off>",
	Short:   "Set a flag manually",
	GroupID: "flags",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := parseState(args[1])
		if err != nil {
			return err
		}
		f, err := flagsClient.SetFlag(context.Background(), args[0], enabled)
		if err != nil {
			return fmt.Errorf("setting flag: %w", err)
		}
		return printFlag(cmd.OutOrStdout(), f)
	},
}

var overrideCmd = &cobra.Command{
	Use:     "override <name> <on|off>",
	Short:   "Override a flag, optionally for a limited time",
	GroupID: "flags",
	Args:    cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if len(args) == 0 {
			overrides, err := flagsClient.ListOverrides(ctx)
			if err != nil {
				return fmt.Errorf("listing overrides: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), overrides)
			}
			if len(overrides) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMuted("no active overrides"))
			}
			for _, o := range overrides {
				expiry := "until reverted"
				if o.ExpiresAt != nil {
					expiry = "until " + o.ExpiresAt.Local().Format("15:04:05")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s (reverts to %s)\n",
					o.Flag, ui.RenderState(o.Enabled), ui.RenderMuted(expiry), ui.RenderState(o.Original.Enabled))
			}
			return nil
		}
		if len(args) != 2 {
			return fmt.Errorf("usage: tg override <name> <on|off> [--for duration]")
		}

		enabled, err := parseState(args[1])
		if err != nil {
			return err
		}
		d, _ := cmd.Flags().GetDuration("for")
		f, err := flagsClient.Override(ctx, args[0], enabled, d)
		if err != nil {
			return fmt.Errorf("overriding flag: %w", err)
		}
		return printFlag(cmd.OutOrStdout(), f)
	},
}

var revertCmd = &cobra.Command{
	Use:     "revert <name>",
	Short:   "Revert a flag override",
	GroupID: "flags",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := flagsClient.RevertOverride(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("reverting override: %w", err)
		}
		return printFlag(cmd.OutOrStdout(), f)
	},
}

func init() {
	listCmd.Flags().String("source", "", "only flags from this source (local, config, remote, manual, override)")
	checkCmd.Flags().Bool("experimental", false, "evaluate experimental_<key> instead of feature_<key>")
	overrideCmd.Flags().Duration("for", 0, "revert automatically after this long (0 = until reverted)")
}
