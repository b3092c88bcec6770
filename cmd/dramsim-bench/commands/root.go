// Package commands implements the dramsim-bench CLI.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "dramsim-bench",
	Short:         "Cycle-accurate DRAM subsystem simulator",
	Long:          `dramsim-bench drives a simulated DRAM subsystem from a trace or a synthetic stream and reports timing statistics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in DDR4 baseline)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateConfigCmd)
}

// Exit prints an error and exits with code 1, mirroring spec.md §6's exit
// codes for a config-fatal error.
func Exit(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
	os.Exit(1)
}
