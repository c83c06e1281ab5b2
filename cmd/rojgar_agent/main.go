// Package main provides the entry point for the job-announcement pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "rojgar_agent",
	Short: "Government job announcement pipeline",
	Long: `Rojgar Agent polls job listing pages, groups articles describing the same announcement,
turns each group into one structured record with an LLM and files it into category partitions.
Expired records are archived at the start of every cycle.

Configuration is read from --config (YAML/JSON/TOML) and ROJGAR_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed progress")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
