// Command crowdsim runs crowd scenarios on the tick-based simulation
// engine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "crowdsim",
		Short: "Crowd simulation with layered human agents",
		Long: `crowdsim places human agents on a 2D map and advances them in fixed
ticks. Each agent plans towards its goals, queues and visits, and moves
around obstacles and other agents.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Run configuration file (YAML)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newValidateCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crowdsim version %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
