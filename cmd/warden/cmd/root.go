// Package cmd provides the CLI commands for Warden.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/warden-hq/warden/internal/config"
)

var cfgFile string
var stateFilePath string

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - capability and approval governance for autonomous agents",
	Long: `Warden is a governance engine for autonomous agents. It resolves every
proposed agent action against role capability grants and layered policies,
and routes risky actions through a human approval lifecycle.

Quick start:
  1. Create a config file: warden.yaml (optional, defaults work)
  2. Run: warden start

Configuration:
  Config is loaded from warden.yaml in the current directory,
  $HOME/.warden/, or /etc/warden/.

  Environment variables can override config values with the WARDEN_ prefix.
  Example: WARDEN_SERVER_HTTP_ADDR=:9090

Commands:
  start       Start the governance server
  validate    Validate the configuration and governance file
  hash-key    Generate a hash for an API key
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./warden.yaml)")
	rootCmd.PersistentFlags().StringVar(&stateFilePath, "state", "", "path to governance.json file (default: ./governance.json)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
