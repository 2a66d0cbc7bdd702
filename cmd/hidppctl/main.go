package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hidppctl",
	Short: "HID++ 2.0 mouse bridge",
	Long: `Command-line bridge to a Logitech HID++ 2.0 mouse:

- Discover and validate compatible devices and receivers
- Inspect the safety-gated feature table
- Query battery level and charging state
- Emit haptic feedback events

Only volatile, read-only feature traffic is permitted; features that
write to onboard device memory are blocklisted and never addressed.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(featuresCmd)
	rootCmd.AddCommand(batteryCmd)
	rootCmd.AddCommand(pulseCmd)
	rootCmd.AddCommand(runCmd)

	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Shorthand for --log-level debug")
}
