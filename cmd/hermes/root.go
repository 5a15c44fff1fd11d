package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "hermes",
	Short: "Hermes - URL sanitization service",
	Long: `Hermes strips tracking parameters from URLs.

It applies the ClearURLs rule catalogue plus per-owner custom rules,
expands allowlisted shortener links before cleaning, and can escalate
still-unclassified parameters to an inference fallback. Cleaning history
and per-owner settings persist at the service boundary.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
