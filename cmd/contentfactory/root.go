package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ContentFactory/internal/config"
)

var (
	configPath string
	outputFmt  string
)

var rootCmd = &cobra.Command{
	Use:   "contentfactory",
	Short: "Plans, renders and publishes short-form content across accounts",
	Long: `contentfactory runs the daily content pipeline: it plans production tasks
from per-account quotas, renders them under an adaptive concurrency limit,
picks publication times per platform and publishes with rate limiting and retries.

Configuration is read from the YAML file named by --config or CONTENT_FACTORY_CONFIG,
then overridden by environment variables and an optional .env file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config (default: $CONTENT_FACTORY_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(slotsCmd)
}

// loadConfig applies --config and validates the merged configuration.
func loadConfig() (config.Config, error) {
	if configPath != "" {
		if err := os.Setenv(config.EnvConfigPath, configPath); err != nil {
			return config.Config{}, fmt.Errorf("set config path: %w", err)
		}
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
