// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the skill-pulse CLI.
//
// skill-pulse turns unstructured text about ML research and tooling into a
// normalized, time-bucketed signal of which skills are trending. Each
// pipeline stage is a subcommand: collect (extract + normalize + persist),
// trends (window aggregation), score (market readiness), and aliases
// (curation tooling).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mlpulse/skill-pulse/internal/metrics"
	"github.com/mlpulse/skill-pulse/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// log is the process-wide logger, built in PersistentPreRunE.
var log = zap.NewNop()

// secretDefault returns fallback if non-empty, else the secret value for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the skill-pulse CLI.
var rootCmd = &cobra.Command{
	Use:   "skill-pulse",
	Short: "Skill extraction and trend analysis for ML research text",
	Long: `skill-pulse ingests documents about ML research and tooling (paper
abstracts, repository descriptions, discussion threads), extracts skill
mentions via a Generative AI backend under a strict call budget, normalizes
them against a curated alias table, and aggregates them into windowed trend
statistics and market-readiness scores.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log = buildLogger(cmd)
		metrics.Register()

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
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

func buildLogger(cmd *cobra.Command) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./skill-pulse.yaml or ~/.config/skill-pulse/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	rootCmd.PersistentFlags().String("data-dir", "data", "base directory for pipeline data (contains index/)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("skill-pulse")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "skill-pulse"))
		}
	}

	viper.SetEnvPrefix("SKILL_PULSE")
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
