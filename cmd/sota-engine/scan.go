// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/sota-engine/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan arXiv metadata for candidate papers",
	Long: `Scan streams an arXiv metadata snapshot (JSON lines) and keeps the
records matching the selection criteria: category, date range, DOI
presence, title exclusions, and keyword groups over title and abstract.
The matching set is written to data/candidates.yaml together with a
fingerprint of the criteria that produced it.

With --query, scan asks the arXiv search API instead of reading a
snapshot and applies the same criteria to the response.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().String("snapshot", "", "arXiv metadata snapshot file (JSON lines)")
	scanCmd.Flags().String("criteria", "criteria.yaml", "selection criteria YAML file")
	scanCmd.Flags().String("data-dir", "", "directory for the candidate set")
	scanCmd.Flags().Int("limit", 0, "stop after examining this many records (0 = config, -1 = all)")
	scanCmd.Flags().String("query", "", "query the arXiv API instead of reading a snapshot")
	scanCmd.Flags().Int("max-results", 100, "maximum records to request from the arXiv API")

	rootCmd.AddCommand(scanCmd)
}

// loadCriteria reads the selection criteria from its YAML file.
func loadCriteria(path string) (scan.Criteria, error) {
	var crit scan.Criteria
	data, err := os.ReadFile(path)
	if err != nil {
		return crit, fmt.Errorf("reading criteria %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &crit); err != nil {
		return crit, fmt.Errorf("parsing criteria %s: %w", path, err)
	}
	return crit, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	pcfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	cfg := pcfg.Scan

	if v, _ := cmd.Flags().GetString("snapshot"); v != "" {
		cfg.SnapshotPath = v
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetInt("limit"); v != 0 {
		cfg.ScanLimit = v
	}

	criteriaPath, _ := cmd.Flags().GetString("criteria")
	crit, err := loadCriteria(criteriaPath)
	if err != nil {
		return err
	}

	query, _ := cmd.Flags().GetString("query")
	if query != "" {
		maxResults, _ := cmd.Flags().GetInt("max-results")
		client := &http.Client{Timeout: cfg.Timeout}

		set, err := scan.QueryAPI(context.Background(), client, query, maxResults, crit, cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "arXiv API: %d candidates for %q\n", len(set.Records), query)
		return scan.WriteCandidates(set, cfg.DataDir)
	}

	set, summary, err := scan.ScanFile(crit, cfg, os.Stdout)
	if err != nil {
		return err
	}
	if err := scan.WriteCandidates(set, cfg.DataDir); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "scanned %d records: %d matched, %d malformed\n",
		summary.Scanned, summary.Matched, summary.Malformed)
	return nil
}
