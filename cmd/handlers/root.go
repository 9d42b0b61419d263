// Package handlers wires the CLI commands to the engine components.
package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dailybrief/internal/config"
	"dailybrief/internal/logger"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dailybrief",
		Short: "dailybrief ingests content, analyzes it with AI, and builds daily briefs.",
		Long: `dailybrief is a personal daily digest engine.

It pulls content from configured sources (RSS feeds, YouTube channels),
classifies and summarizes each item with an AI model, ranks the results
against your topics, and assembles a daily brief with per-topic executive
narratives.`,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dailybrief.yaml)")

	rootCmd.AddCommand(NewIngestCmd())
	rootCmd.AddCommand(NewProcessCmd())
	rootCmd.AddCommand(NewBriefCmd())
	rootCmd.AddCommand(NewRunsCmd())
	rootCmd.AddCommand(NewTopicsCmd())
	rootCmd.AddCommand(NewSourcesCmd())
	rootCmd.AddCommand(NewServeCmd())

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.App.LogLevel)
	if cfg.App.ConfigFile != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", cfg.App.ConfigFile)
	}
}
