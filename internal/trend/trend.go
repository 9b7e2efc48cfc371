// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package trend folds canonical mentions into per-skill, per-window
// statistics. Each window is computed from scratch over its full mention set;
// nothing here mutates state across runs, so recomputation is idempotent.
package trend

import (
	"sort"

	"github.com/mlpulse/skill-pulse/pkg/types"
)

// Aggregate computes WindowStats for every skill mentioned within the
// half-open window [window.Start, window.End). totalDocuments is the number
// of documents observed in the window and is the prevalence denominator.
//
// A malformed window or an empty mention set yields zero stats, not an
// error: "no data this window" is a valid outcome.
func Aggregate(mentions []types.CanonicalMention, totalDocuments int, window types.TimeWindow) []types.WindowStat {
	if window.Validate() != nil || totalDocuments <= 0 {
		return nil
	}

	type counts struct {
		mentions int
		docs     map[string]bool
	}
	bySkill := make(map[string]*counts)

	for _, m := range mentions {
		if !window.Contains(m.Timestamp) {
			continue
		}
		c, ok := bySkill[m.SkillID]
		if !ok {
			c = &counts{docs: make(map[string]bool)}
			bySkill[m.SkillID] = c
		}
		c.mentions++
		c.docs[m.DocumentID] = true
	}

	stats := make([]types.WindowStat, 0, len(bySkill))
	for skillID, c := range bySkill {
		stats = append(stats, types.WindowStat{
			SkillID:               skillID,
			WindowStart:           window.Start,
			WindowEnd:             window.End,
			MentionCount:          c.mentions,
			DistinctDocumentCount: len(c.docs),
			PrevalenceRatio:       float64(len(c.docs)) / float64(totalDocuments),
		})
	}

	Rank(stats)
	return stats
}

// Rank sorts stats by (MentionCount desc, SkillID asc) and assigns 1-based
// ranks. The skill-id tie-break keeps ordering reproducible across runs.
func Rank(stats []types.WindowStat) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].MentionCount != stats[j].MentionCount {
			return stats[i].MentionCount > stats[j].MentionCount
		}
		return stats[i].SkillID < stats[j].SkillID
	})
	for i := range stats {
		stats[i].Rank = i + 1
	}
}

// Deltas returns the per-skill change in prevalence between two adjacent
// windows. Skills present in only one window contribute against an implicit
// zero in the other.
func Deltas(current, previous []types.WindowStat) map[string]float64 {
	deltas := make(map[string]float64, len(current))
	prev := make(map[string]float64, len(previous))
	for _, s := range previous {
		prev[s.SkillID] = s.PrevalenceRatio
	}
	for _, s := range current {
		deltas[s.SkillID] = s.PrevalenceRatio - prev[s.SkillID]
		delete(prev, s.SkillID)
	}
	for skillID, ratio := range prev {
		deltas[skillID] = -ratio
	}
	return deltas
}

// Windows builds count adjacent windows of the given size ending at end,
// ordered oldest first.
func Windows(end types.TimeWindow, count int) []types.TimeWindow {
	if count <= 0 {
		return nil
	}
	windows := make([]types.TimeWindow, count)
	w := end
	for i := count - 1; i >= 0; i-- {
		windows[i] = w
		w = w.Previous()
	}
	return windows
}
