// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mlpulse/skill-pulse/internal/score"
	"github.com/mlpulse/skill-pulse/internal/store"
	"github.com/mlpulse/skill-pulse/pkg/types"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute market-readiness scores from stored window statistics",
	Long: `Score combines prevalence, persistence, and growth into a composite
market-readiness score per skill, using the stats history already computed by
the trends command. A skill seen for the first time scores on prevalence
alone. Results are printed and persisted.`,
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().Duration("window", 168*time.Hour, "window size of the stored stats to score")
	scoreCmd.Flags().String("end", "", "end of the most recent window, RFC3339 (default: now)")
	scoreCmd.Flags().Float64("weight-prevalence", 0.5, "weight of the prevalence component")
	scoreCmd.Flags().Float64("weight-persistence", 0.3, "weight of the persistence component")
	scoreCmd.Flags().Float64("weight-growth", 0.2, "weight of the growth component")
	scoreCmd.Flags().Int("persistence-windows", 6, "trailing windows counted toward persistence")
	scoreCmd.Flags().Int("growth-windows", 3, "trailing deltas counted toward growth")
	scoreCmd.Flags().Bool("json", false, "print scores as JSON")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
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
	current, err := st.StatsForWindow(ctx, window)
	if err != nil {
		return err
	}
	if len(current) == 0 {
		fmt.Println("No stats for window; run trends first.")
		return nil
	}

	scorer := score.NewScorer(scoringConfig(cmd))

	scores := make([]types.MarketReadinessScore, 0, len(current))
	for _, stat := range current {
		history, err := st.StatsHistory(ctx, stat.SkillID, window.Start)
		if err != nil {
			return err
		}
		scores = append(scores, scorer.Score(stat, history))
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].SkillID < scores[j].SkillID
	})

	if err := st.SaveScores(ctx, scores); err != nil {
		return err
	}
	log.Info("scores computed",
		zap.Time("window_end", window.End),
		zap.Int("skills", len(scores)))

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(scores)
	}
	printScores(scores)
	return nil
}

func scoringConfig(cmd *cobra.Command) types.ScoringConfig {
	prevalence, _ := cmd.Flags().GetFloat64("weight-prevalence")
	persistence, _ := cmd.Flags().GetFloat64("weight-persistence")
	growth, _ := cmd.Flags().GetFloat64("weight-growth")
	pw, _ := cmd.Flags().GetInt("persistence-windows")
	gw, _ := cmd.Flags().GetInt("growth-windows")

	return types.ScoringConfig{
		Weights: types.ScoreWeights{
			Prevalence:  prevalence,
			Persistence: persistence,
			Growth:      growth,
		},
		PersistenceWindows: pw,
		GrowthWindows:      gw,
	}
}

func printScores(scores []types.MarketReadinessScore) {
	fmt.Fprintf(os.Stdout, "%-30s  %-6s  %-10s  %-11s  %s\n",
		"Skill", "Score", "Prevalence", "Persistence", "Growth")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 72))
	for _, sc := range scores {
		fmt.Fprintf(os.Stdout, "%-30s  %.3f  %10.3f  %11.3f  %.3f\n",
			sc.SkillID, sc.Score,
			sc.Components.Prevalence, sc.Components.Persistence, sc.Components.Growth)
	}
	fmt.Fprintf(os.Stdout, "\n%d skill(s) scored\n", len(scores))
}
