package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/toggles/internal/client"
	"github.com/alfredjeanlab/toggles/internal/events"
	"github.com/alfredjeanlab/toggles/internal/ui"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check that the server is up",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := flagsClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), h)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (initialized: %t)\n", h.Status, h.Initialized)
		return nil
	},
}

var debugCmd = &cobra.Command{
	Use:     "debug",
	Short:   "Show engine diagnostics",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := flagsClient.Debug(context.Background())
		if err != nil {
			return fmt.Errorf("fetching debug info: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), d)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "Initialized:\t%t\n", d.Initialized)
		fmt.Fprintf(tw, "Flags:\t%d\n", d.FlagCount)
		sources := make([]string, len(d.Sources))
		for i, s := range d.Sources {
			sources[i] = string(s)
		}
		fmt.Fprintf(tw, "Sources:\t%s\n", strings.Join(sources, ", "))
		fmt.Fprintf(tw, "Listeners:\t%d\n", d.Listeners)
		fmt.Fprintf(tw, "Listener faults:\t%d\n", d.ListenerFaults)
		fmt.Fprintf(tw, "Overrides:\t%s\n", strings.Join(d.ActiveOverrides, ", "))
		lastSync := ui.RenderMuted("never")
		if d.LastSync != nil {
			lastSync = d.LastSync.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "Last sync:\t%s\n", lastSync)
		return tw.Flush()
	},
}

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Export every flag as JSON",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exported, err := flagsClient.Export(context.Background())
		if err != nil {
			return fmt.Errorf("exporting flags: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), exported)
	},
}

var saveCmd = &cobra.Command{
	Use:     "save [name...]",
	Short:   "Persist flags to the server's local storage",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := flagsClient.Save(context.Background(), args...)
		if err != nil {
			return fmt.Errorf("saving flags: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]int{"saved": n})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %d flags\n", n)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Refresh remote flags and export a snapshot now",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := flagsClient.Sync(context.Background())
		if err != nil {
			return fmt.Errorf("syncing: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "refreshed: %t, exported %d flags (%d bytes)\n",
			res.Refreshed, res.FlagCount, res.ExportedBytes)
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:               "refresh",
	Short:             "Ask every server on the event bus to re-fetch remote flags",
	GroupID:           "system",
	Args:              cobra.NoArgs,
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats-url")
		if natsURL == "" {
			return errors.New("no NATS URL: pass --nats-url, set TOGGLES_NATS_URL or add it to the active remote")
		}

		pub, err := events.NewNATSPublisher(natsURL)
		if err != nil {
			return err
		}
		defer pub.Close()

		ev := &events.Refresh{RequestedBy: requester()}
		if err := events.Stamp(ev); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pub.Publish(ctx, events.TopicRefresh, ev); err != nil {
			return fmt.Errorf("publishing refresh: %w", err)
		}
		if err := pub.Flush(); err != nil {
			return fmt.Errorf("flushing refresh: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "refresh requested (%s)\n", ev.ID)
		return nil
	},
}

func requester() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	host, _ := os.Hostname()
	return host
}

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream flag change events",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topics")
		ctx, cancel := signalContext()
		defer cancel()

		out := cmd.OutOrStdout()
		return flagsClient.Stream(ctx, topics, func(ev client.Event) error {
			if jsonOutput {
				fmt.Fprintln(out, string(ev.Data))
				return nil
			}
			return printEvent(out, ev)
		})
	},
}

func printEvent(w io.Writer, ev client.Event) error {
	var payload map[string]any
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		fmt.Fprintf(w, "%s %s\n", ui.RenderAccent(ev.Topic), string(ev.Data))
		return nil
	}
	var parts []string
	for _, k := range []string{"flag", "new_value", "enabled", "source", "count"} {
		if v, ok := payload[k]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	fmt.Fprintf(w, "%s %s\n", ui.RenderAccent(ev.Topic), strings.Join(parts, " "))
	return nil
}

func init() {
	refreshCmd.Flags().String("nats-url", activeRemoteNATSURL(), "NATS server URL")
	watchCmd.Flags().StringSlice("topics", nil, "topic patterns to watch (default: all)")
}
