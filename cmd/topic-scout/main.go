// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the topic-scout CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/topic-scout/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds provider API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the topic-scout CLI.
var rootCmd = &cobra.Command{
	Use:   "topic-scout",
	Short: "Affiliate-program and keyword research for content topics",
	Long: `topic-scout researches a content topic across external discovery
providers. A topic is decomposed into sub-topics; each sub-topic is
queried against affiliate directories and keyword-metrics APIs, results
are merged across sub-topics, scored, and stored for content planning.

Each stage is a subcommand: topics manages topic records, research runs
the aggregation pipeline, and export writes merged results to a file.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./topic-scout.yaml or ~/.config/topic-scout/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("topic-scout")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "topic-scout"))
		}
	}

	viper.SetEnvPrefix("TOPIC_SCOUT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
