package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "presets",
	Short: "Aircraft preset procedure runner",
	Long: `Loads aircraft state presets by executing their step procedures
against the simulator variable store, one step per tick.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config-dir", ".", "Directory containing the config file")
}
