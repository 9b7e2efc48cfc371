// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package score derives a composite market-readiness signal per skill from
// aggregated window statistics.
package score

import (
	"github.com/mlpulse/skill-pulse/pkg/types"
)

const (
	defaultPersistenceWindows = 6
	defaultGrowthWindows      = 3
)

// defaultWeights apply when the configured weights sum to zero.
var defaultWeights = types.ScoreWeights{Prevalence: 0.5, Persistence: 0.3, Growth: 0.2}

// Scorer combines prevalence, persistence, and growth into a [0,1] score.
// Weights come from configuration so tuning never needs a code change.
type Scorer struct {
	weights            types.ScoreWeights
	persistenceWindows int
	growthWindows      int
}

// NewScorer builds a Scorer from cfg, applying defaults for zero values.
func NewScorer(cfg types.ScoringConfig) *Scorer {
	weights := cfg.Weights
	if weights.Prevalence+weights.Persistence+weights.Growth <= 0 {
		weights = defaultWeights
	}
	pw := cfg.PersistenceWindows
	if pw <= 0 {
		pw = defaultPersistenceWindows
	}
	gw := cfg.GrowthWindows
	if gw <= 0 {
		gw = defaultGrowthWindows
	}
	return &Scorer{weights: weights, persistenceWindows: pw, growthWindows: gw}
}

// Score computes the readiness score for one skill. stat is the skill's
// current window; history holds the same skill's stats for preceding
// windows, oldest first, with absent windows simply missing.
//
// A skill with no history scores on prevalence alone: persistence and growth
// are zero, and the result is always finite.
func (s *Scorer) Score(stat types.WindowStat, history []types.WindowStat) types.MarketReadinessScore {
	components := types.ScoreComponents{
		Prevalence:  clamp01(stat.PrevalenceRatio),
		Persistence: s.persistence(history),
		Growth:      s.growth(stat, history),
	}

	total := s.weights.Prevalence + s.weights.Persistence + s.weights.Growth
	weighted := (components.Prevalence*s.weights.Prevalence +
		components.Persistence*s.weights.Persistence +
		components.Growth*s.weights.Growth) / total

	return types.MarketReadinessScore{
		SkillID:    stat.SkillID,
		Window:     types.TimeWindow{Start: stat.WindowStart, End: stat.WindowEnd},
		Score:      clamp01(weighted),
		Components: components,
	}
}

// persistence is the fraction of the last persistenceWindows history entries
// with at least one mention.
func (s *Scorer) persistence(history []types.WindowStat) float64 {
	if len(history) == 0 {
		return 0
	}
	recent := history
	if len(recent) > s.persistenceWindows {
		recent = recent[len(recent)-s.persistenceWindows:]
	}
	present := 0
	for _, h := range recent {
		if h.MentionCount > 0 {
			present++
		}
	}
	return float64(present) / float64(s.persistenceWindows)
}

// growth is the fraction of positive prevalence deltas over the last
// growthWindows steps of the sequence history..stat.
func (s *Scorer) growth(stat types.WindowStat, history []types.WindowStat) float64 {
	if len(history) == 0 {
		return 0
	}
	series := make([]float64, 0, len(history)+1)
	for _, h := range history {
		series = append(series, h.PrevalenceRatio)
	}
	series = append(series, stat.PrevalenceRatio)

	steps := s.growthWindows
	if steps > len(series)-1 {
		steps = len(series) - 1
	}
	positive := 0
	for i := len(series) - steps; i < len(series); i++ {
		if series[i] > series[i-1] {
			positive++
		}
	}
	return float64(positive) / float64(s.growthWindows)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
