// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// TimeWindow is a half-open interval [Start, End) over which mentions are
// aggregated. A mention timestamped exactly at End belongs to the next window.
type TimeWindow struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Validate checks that the window bounds are ordered.
func (w TimeWindow) Validate() error {
	if !w.End.After(w.Start) {
		return fmt.Errorf("window end %s is not after start %s", w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}

// Previous returns the adjacent window of equal length ending at w.Start.
func (w TimeWindow) Previous() TimeWindow {
	span := w.End.Sub(w.Start)
	return TimeWindow{Start: w.Start.Add(-span), End: w.Start}
}

// WindowStat holds aggregated statistics for one skill over one window.
// Recomputed from scratch each aggregation run; never incrementally mutated.
type WindowStat struct {
	// SkillID is the canonical skill this row describes.
	SkillID string `json:"skill_id" yaml:"skill_id"`

	// WindowStart and WindowEnd echo the aggregation window bounds.
	WindowStart time.Time `json:"window_start" yaml:"window_start"`
	WindowEnd   time.Time `json:"window_end" yaml:"window_end"`

	// MentionCount is the total number of mentions, counting repeats within
	// one document.
	MentionCount int `json:"mention_count" yaml:"mention_count"`

	// DistinctDocumentCount is the number of unique documents mentioning the
	// skill at least once.
	DistinctDocumentCount int `json:"distinct_document_count" yaml:"distinct_document_count"`

	// PrevalenceRatio is DistinctDocumentCount divided by the total number of
	// documents observed in the window.
	PrevalenceRatio float64 `json:"prevalence_ratio" yaml:"prevalence_ratio"`

	// Rank is the 1-based trending position within the window, ordered by
	// (MentionCount desc, SkillID asc).
	Rank int `json:"rank" yaml:"rank"`
}

// ScoreComponents breaks a readiness score into its weighted inputs.
type ScoreComponents struct {
	Prevalence  float64 `json:"prevalence" yaml:"prevalence"`
	Persistence float64 `json:"persistence" yaml:"persistence"`
	Growth      float64 `json:"growth" yaml:"growth"`
}

// MarketReadinessScore estimates how production-ready a skill is, derived
// from aggregated window statistics. Read-only downstream artifact.
type MarketReadinessScore struct {
	// SkillID is the canonical skill being scored.
	SkillID string `json:"skill_id" yaml:"skill_id"`

	// Window is the most recent window the score was computed for.
	Window TimeWindow `json:"window" yaml:"window"`

	// Score is the composite in [0,1].
	Score float64 `json:"score" yaml:"score"`

	// Components holds the normalized per-component values before weighting.
	Components ScoreComponents `json:"components" yaml:"components"`
}
