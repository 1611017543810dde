// Package cli implements the metergrid command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is the build version, overridable at link time.
var Version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "metergrid",
	Short: "Residential electricity-meter self-reporting service",
	Long: `metergrid runs the meter self-reporting service: households register,
submit half-hourly readings, and query daily and historical usage. A periodic
consolidation merges in-memory readings into the durable JSON ledger.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(),
		"Path to the TOML config file")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the metergrid version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "metergrid %s\n", Version)
	},
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.metergrid/config.toml"
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
