// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/sota-engine/internal/leaderboard"
	"github.com/pdiddy/sota-engine/pkg/types"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Build and query the results leaderboard",
	Long: `Leaderboard aggregates extraction results into a ranked table of
methods: one row per reported metric, sorted by value, each row backed
by a verbatim evidence quote. Use subcommands to rebuild the outputs or
query them.`,
}

// --- build subcommand ---

var leaderboardBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Aggregate extraction results into the leaderboard outputs",
	Long: `Build reads every extraction result for the current schema version,
flattens the successful ones into leaderboard rows, and writes two
outputs: output/leaderboard.csv and a queryable SQLite index at
output/index/leaderboard.db. Both are derived state; build is
idempotent and can be re-run at any time.`,
	RunE: runLeaderboardBuild,
}

func runLeaderboardBuild(cmd *cobra.Command, args []string) error {
	cfg, err := leaderboardConfig(cmd)
	if err != nil {
		return err
	}
	return buildLeaderboard(context.Background(), cfg, os.Stdout)
}

// buildLeaderboard regenerates the CSV and the SQLite index from the
// persisted results. Shared by the leaderboard and pipeline commands.
func buildLeaderboard(ctx context.Context, cfg types.LeaderboardConfig, w io.Writer) error {
	results, err := leaderboard.LoadResults(cfg)
	if err != nil {
		return err
	}

	rows := leaderboard.Aggregate(results)
	if err := leaderboard.WriteCSV(rows, leaderboard.CSVPath(cfg)); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %s (%d rows)\n", leaderboard.CSVPath(cfg), len(rows))

	store, err := leaderboard.NewStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Rebuild(ctx, results, w)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d paper(s) failed indexing", summary.Failed)
	}
	return nil
}

// --- query subcommand ---

var leaderboardQueryCmd = &cobra.Command{
	Use:   "query [terms]",
	Short: "Query the leaderboard index",
	Long: `Query searches the leaderboard SQLite index. Free terms run a full-text
search over method names and evidence quotes; --benchmark, --metric and
--taxonomy filter rows exactly. Without a search query, rows come back
in leaderboard order (value descending).`,
	RunE: runLeaderboardQuery,
}

func runLeaderboardQuery(cmd *cobra.Command, args []string) error {
	cfg, err := leaderboardConfig(cmd)
	if err != nil {
		return err
	}

	store, err := leaderboard.NewStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	benchmark, _ := cmd.Flags().GetString("benchmark")
	metric, _ := cmd.Flags().GetString("metric")
	tax, _ := cmd.Flags().GetString("taxonomy")
	limit, _ := cmd.Flags().GetInt("limit")

	opts := leaderboard.QueryOptions{
		Query:          strings.Join(args, " "),
		Benchmark:      benchmark,
		Metric:         metric,
		TaxonomyLevel1: tax,
		MaxResults:     limit,
	}

	rows, err := store.Query(context.Background(), opts)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-20s  %-16s  %-24s  %8s  %s\n",
		"Rank", "Method", "Benchmark", "Metric", "Value", "Paper")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for i, r := range rows {
		method := r.Method
		if len(method) > 20 {
			method = method[:17] + "..."
		}
		benchmark := r.Benchmark
		if len(benchmark) > 16 {
			benchmark = benchmark[:13] + "..."
		}
		metric := r.Metric
		if len(metric) > 24 {
			metric = metric[:21] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-20s  %-16s  %-24s  %8.4f  %s\n",
			i+1, method, benchmark, metric, r.Value, r.PaperID)
	}
	fmt.Fprintf(os.Stdout, "\n%d rows\n", len(rows))
	return nil
}

// --- shared helpers ---

func leaderboardConfig(cmd *cobra.Command) (types.LeaderboardConfig, error) {
	pcfg, err := pipelineConfig()
	if err != nil {
		return types.LeaderboardConfig{}, err
	}
	cfg := pcfg.Leaderboard

	if v, _ := cmd.Flags().GetString("results-dir"); v != "" {
		cfg.ResultsDir = v
	}
	if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
		cfg.OutputDir = v
	}
	return cfg, nil
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	leaderboardCmd.PersistentFlags().String("results-dir", "", "base directory for results (contains extracted/)")
	leaderboardCmd.PersistentFlags().String("output-dir", "", "directory for the leaderboard outputs")

	// Query flags.
	leaderboardQueryCmd.Flags().String("benchmark", "", "filter rows by benchmark name")
	leaderboardQueryCmd.Flags().String("metric", "", "filter rows by metric name")
	leaderboardQueryCmd.Flags().String("taxonomy", "", "filter rows by level-1 taxonomy category")
	leaderboardQueryCmd.Flags().Int("limit", 0, "maximum rows (0 = use default)")
	leaderboardQueryCmd.Flags().Bool("json", false, "output rows as JSON")

	leaderboardCmd.AddCommand(leaderboardBuildCmd)
	leaderboardCmd.AddCommand(leaderboardQueryCmd)

	rootCmd.AddCommand(leaderboardCmd)
}
