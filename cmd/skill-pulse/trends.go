// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mlpulse/skill-pulse/internal/store"
	"github.com/mlpulse/skill-pulse/internal/trend"
	"github.com/mlpulse/skill-pulse/pkg/types"
)

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Aggregate stored mentions into windowed trend statistics",
	Long: `Trends computes per-skill statistics over a time window from the stored
canonical mentions: mention counts, distinct-document counts, prevalence, and
rank. The delta against the preceding window marks emerging skills. Results
are printed and persisted; recomputing a window overwrites its previous
stats.`,
	RunE: runTrends,
}

func init() {
	trendsCmd.Flags().Duration("window", 168*time.Hour, "aggregation window size")
	trendsCmd.Flags().String("end", "", "window end, RFC3339 (default: now)")
	trendsCmd.Flags().Int("limit", 20, "number of skills to print (0 = all)")
	trendsCmd.Flags().Bool("json", false, "print stats as JSON")

	rootCmd.AddCommand(trendsCmd)
}

func runTrends(cmd *cobra.Command, args []string) error {
	window, err := windowFromFlags(cmd)
	if err != nil {
		return err
	}

	dataDir, _ := cmd.Flags().GetString("data-dir")
	st, err := store.NewStore(types.StoreConfig{DataDir: dataDir})
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	stats, deltas, totalDocs, err := aggregateWindow(ctx, st, window)
	if err != nil {
		return err
	}

	if err := st.SaveWindowStats(ctx, stats); err != nil {
		return err
	}
	log.Info("window aggregated",
		zap.Time("start", window.Start),
		zap.Time("end", window.End),
		zap.Int("documents", totalDocs),
		zap.Int("skills", len(stats)))

	limit, _ := cmd.Flags().GetInt("limit")
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	printStats(stats, deltas, totalDocs)
	return nil
}

// aggregateWindow computes stats for the window and deltas against the
// adjacent previous window.
func aggregateWindow(ctx context.Context, st *store.Store, window types.TimeWindow) ([]types.WindowStat, map[string]float64, int, error) {
	previous := window.Previous()

	mentions, err := st.MentionsBetween(ctx, previous.Start, window.End)
	if err != nil {
		return nil, nil, 0, err
	}
	totalDocs, err := st.CountDocuments(ctx, window)
	if err != nil {
		return nil, nil, 0, err
	}
	previousDocs, err := st.CountDocuments(ctx, previous)
	if err != nil {
		return nil, nil, 0, err
	}

	stats := trend.Aggregate(mentions, totalDocs, window)
	previousStats := trend.Aggregate(mentions, previousDocs, previous)
	return stats, trend.Deltas(stats, previousStats), totalDocs, nil
}

func printStats(stats []types.WindowStat, deltas map[string]float64, totalDocs int) {
	if len(stats) == 0 {
		fmt.Println("No mentions in window.")
		return
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-30s  %-8s  %-6s  %-10s  %s\n",
		"Rank", "Skill", "Mentions", "Docs", "Prevalence", "Trend")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 76))

	for _, st := range stats {
		marker := ""
		if deltas[st.SkillID] > 0 {
			marker = "emerging"
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-30s  %-8d  %-6d  %9.1f%%  %s\n",
			st.Rank, st.SkillID, st.MentionCount, st.DistinctDocumentCount,
			st.PrevalenceRatio*100, marker)
	}
	fmt.Fprintf(os.Stdout, "\n%d skill(s) over %d document(s)\n", len(stats), totalDocs)
}

// windowFromFlags builds the aggregation window from --window and --end.
func windowFromFlags(cmd *cobra.Command) (types.TimeWindow, error) {
	size, _ := cmd.Flags().GetDuration("window")
	end := time.Now().UTC()
	if endFlag, _ := cmd.Flags().GetString("end"); endFlag != "" {
		parsed, err := time.Parse(time.RFC3339, endFlag)
		if err != nil {
			return types.TimeWindow{}, fmt.Errorf("parsing --end: %w", err)
		}
		end = parsed.UTC()
	}
	window := types.TimeWindow{Start: end.Add(-size), End: end}
	if err := window.Validate(); err != nil {
		return types.TimeWindow{}, err
	}
	return window, nil
}
