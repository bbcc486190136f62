// Command storexd runs the demo traffic-light store: replay action scripts
// or serve it over HTTP and WebSocket.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "storexd",
		Short: "Run the storex demo store",
		Long: `storexd drives a traffic-light demo store built with storex.

It can replay a YAML script of actions and export the recorded history,
or serve the store over HTTP with a WebSocket state stream and
Prometheus metrics. Configuration comes from an optional YAML file and
STOREX_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(
		runCmd(&configPath),
		serveCmd(&configPath),
		versionCmd(),
	)
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "storexd %s (%s)\n", version, commit)
		},
	}
}
