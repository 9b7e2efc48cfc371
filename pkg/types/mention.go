// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SkillCategory is an optional hint about what kind of skill a mention refers to.
type SkillCategory string

const (
	CategoryFramework   SkillCategory = "framework"
	CategoryTechnique   SkillCategory = "technique"
	CategoryApplication SkillCategory = "application"
)

// ValidCategory reports whether c is a known category. The empty category is
// valid: the backend may omit the hint.
func ValidCategory(c SkillCategory) bool {
	switch c {
	case "", CategoryFramework, CategoryTechnique, CategoryApplication:
		return true
	}
	return false
}

// RawMention is one skill reference as returned by the extraction backend,
// before normalization. Ephemeral: raw mentions live only for the duration of
// a pipeline run.
type RawMention struct {
	// DocumentID links the mention back to its source document.
	DocumentID string `json:"document_id" yaml:"document_id"`

	// RawText is the surface form as the backend reported it
	// (e.g. "transformers", "PyTorch 2.0").
	RawText string `json:"raw_text" yaml:"raw_text"`

	// Category is the backend's category hint, or empty if it gave none.
	Category SkillCategory `json:"category,omitempty" yaml:"category,omitempty"`

	// Confidence is the backend's confidence in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// CanonicalMention is a raw mention resolved to a canonical skill identity.
// SkillID always resolves to exactly one alias equivalence class.
type CanonicalMention struct {
	// SkillID is the canonical skill identifier (e.g. "pytorch").
	SkillID string `json:"skill_id" yaml:"skill_id"`

	// DocumentID links back to the source document.
	DocumentID string `json:"document_id" yaml:"document_id"`

	// Source is the source of the document the mention came from.
	Source DocumentSource `json:"source" yaml:"source"`

	// Timestamp is the document's publication time; aggregation buckets by it.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Category carries the mention's category hint through to aggregation.
	Category SkillCategory `json:"category,omitempty" yaml:"category,omitempty"`
}
