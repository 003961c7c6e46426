// Switcher controls Switcher smart home devices over the local network.
//
// It finds devices by their UDP broadcast beacons, reads their state and
// sends commands over the binary TCP protocol: power plugs and water
// heaters, shutter runners and breeze AC remotes. It can also relay
// beacons to WebSocket subscribers and show them in a live dashboard.
//
// Usage:
//
//	switcher [command] [flags]
//
// Settings can be put in a .env file in the working directory, for example
// SWITCHER_LOG_LEVEL=debug. See 'switcher --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/muurk/switcher/internal/config"
	"github.com/muurk/switcher/internal/logging"
	"github.com/muurk/switcher/internal/version"
)

func main() {
	// A missing .env is fine
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	logLevel   string
	jsonOutput bool
)

// registry is loaded before every command
var registry *config.Registry

var rootCmd = &cobra.Command{
	Use:   "switcher",
	Short: "Switcher Device Control Utility",
	Long: `A command line client for Switcher smart home devices.

Discovers devices from their UDP broadcasts and controls them over the
local network: power plugs and water heaters, shutter runners and breeze
air conditioner remotes. Devices seen once are remembered and can be
addressed by id, name or nickname.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		registry, err = config.LoadRegistry()
		if err != nil {
			return err
		}
		level := logLevel
		if level == "" && os.Getenv(logging.LogLevelEnvVar) == "" && registry.Preferences != nil {
			level = registry.Preferences.LogLevel
		}
		return logging.Initialize(level)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to $"+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if jsonOutput {
			return printJSON(cmd, info)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "switcher %s (%s, %s)\n", version.Full(), info.GoVersion, info.Platform)
		return err
	},
}
