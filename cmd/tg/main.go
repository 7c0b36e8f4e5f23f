// Command tg is the toggles CLI: it hosts the flag engine behind an HTTP
// API (tg serve) and talks to a running server for everything else.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/toggles/internal/client"
	"github.com/alfredjeanlab/toggles/internal/ui"
)

var (
	serverURL  string
	authToken  string
	jsonOutput bool

	flagsClient client.FlagsClient
)

func defaultServerURL() string {
	if s := os.Getenv("TOGGLES_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if s := os.Getenv("TOGGLES_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

var rootCmd = &cobra.Command{
	Use:           "tg <command>",
	Short:         "Feature flags and experiments",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		flagsClient = client.NewHTTPClient(serverURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if flagsClient != nil {
			flagsClient.Close()
		}
	},
}

// noClient skips building the API client for commands that work locally.
func noClient(cmd *cobra.Command, args []string) error { return nil }

func init() {
	// Flag defaults read the environment, so .env must be loaded first.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&serverURL, "url", defaultServerURL(), "toggles server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "flags", Title: "Flags:"},
		&cobra.Group{ID: "experiments", Title: "Experiments:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Flags
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(revertCmd)

	// Experiments
	rootCmd.AddCommand(variantCmd)
	rootCmd.AddCommand(usageCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	ui.Init()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
