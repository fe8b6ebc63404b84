// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the sota-engine CLI.
//
// sota-engine mines a corpus of academic papers for state-of-the-art
// results: it scans arXiv metadata for candidates, fetches and parses
// their PDFs, filters on content, extracts structured records through a
// Generative AI model, and aggregates them into a leaderboard. Each
// stage is a subcommand and caches its output, so interrupted runs
// resume where they stopped.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/sota-engine/internal/secrets"
	"github.com/pdiddy/sota-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the sota-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "sota-engine",
	Short: "Mine academic papers for state-of-the-art results",
	Long: `sota-engine builds a leaderboard of state-of-the-art results from a corpus
of academic papers. The pipeline runs in stages: scan arXiv metadata for
candidate papers, fetch their PDFs, parse them to text, filter on
content, extract structured records via a Generative AI model, and
aggregate the records into a ranked leaderboard.

Each stage is a subcommand and caches its output per paper, so a stage
can be re-run at any time and only does new work. Run "sota-engine
pipeline" for the whole sequence.`,
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

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./sota-engine.yaml or ~/.config/sota-engine/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("sota-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "sota-engine"))
		}
	}

	viper.SetEnvPrefix("SOTA_ENGINE")
	viper.AutomaticEnv()

	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

const defaultUserAgent = "sota-engine/0.1"

func setConfigDefaults() {
	viper.SetDefault("scan.snapshot_path", "arxiv-metadata.json")
	viper.SetDefault("scan.data_dir", "data")
	viper.SetDefault("scan.scan_limit", -1)
	viper.SetDefault("scan.timeout", 60*time.Second)
	viper.SetDefault("scan.user_agent", defaultUserAgent)

	viper.SetDefault("fetch.papers_dir", "papers")
	viper.SetDefault("fetch.timeout", 60*time.Second)
	viper.SetDefault("fetch.user_agent", defaultUserAgent)
	viper.SetDefault("fetch.download_delay", time.Second)

	viper.SetDefault("parse.backend", string(types.BackendPdftotext))
	viper.SetDefault("parse.papers_dir", "papers")
	viper.SetDefault("parse.max_pages", 10)

	viper.SetDefault("content_filter.min_text_length", 500)

	viper.SetDefault("extraction.provider", "gemini")
	viper.SetDefault("extraction.model", "gemini-2.5-flash")
	viper.SetDefault("extraction.papers_dir", "papers")
	viper.SetDefault("extraction.results_dir", "results")
	viper.SetDefault("extraction.taxonomy_path", "taxonomy.yaml")
	viper.SetDefault("extraction.max_calls", -1)
	viper.SetDefault("extraction.concurrency", 1)
	viper.SetDefault("extraction.call_delay", time.Second)
	viper.SetDefault("extraction.max_document_chars", 60000)

	viper.SetDefault("leaderboard.results_dir", "results")
	viper.SetDefault("leaderboard.output_dir", "output")
	viper.SetDefault("leaderboard.max_results", 20)
}

// pipelineConfig builds the full run configuration from the config file
// and environment. Stage flags override individual fields afterwards.
func pipelineConfig() (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
