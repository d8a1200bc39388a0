package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

var rootCmd = &cobra.Command{
	Use:   "blegate",
	Short: "Websocket gateway to a BLE radio",
	Long: `Exposes the host's Bluetooth Low Energy radio to a single websocket client.

The client sends base64 msgpack frames to scan for devices, connect to one
and exchange TileBus RPCs with it. See the serve command.`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("blegate %s (commit %s, built %s)\n", formatVersion(version), commit, date))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(interfacesCmd)

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Shorthand for --log-level debug")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
