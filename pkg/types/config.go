package types

import "time"

// AIConfig holds shared settings for components that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "gemini-2.5-flash").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for transient API failures
	// (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// RateLimitConfig bounds outbound calls to the extraction backend.
type RateLimitConfig struct {
	// Quota is the number of requests admitted per Window (default 15).
	Quota int `json:"quota" yaml:"quota"`

	// Window is the rolling interval the quota applies to (default 60s).
	Window time.Duration `json:"window" yaml:"window"`
}

// ExtractionConfig holds settings for the skill extraction stage.
type ExtractionConfig struct {
	AIConfig `yaml:",inline"`

	// Workers is the number of concurrent extraction workers (default 5).
	// Total call rate is bounded by RateLimit regardless of worker count.
	Workers int `json:"workers" yaml:"workers"`

	// RateLimit throttles calls to the extraction backend.
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

// NormalizationConfig holds settings for mapping raw mentions to canonical skills.
type NormalizationConfig struct {
	// AliasFile is the path to the curated alias table (YAML).
	AliasFile string `json:"alias_file" yaml:"alias_file"`

	// FuzzyThreshold is the minimum similarity for a fuzzy alias match
	// (default 0.85). A raw string matching two candidates at or above the
	// threshold is dropped rather than guessed.
	FuzzyThreshold float64 `json:"fuzzy_threshold" yaml:"fuzzy_threshold"`

	// QueueUnknown, when true, records unmatched surface forms in the
	// curation queue instead of discarding them silently.
	QueueUnknown bool `json:"queue_unknown" yaml:"queue_unknown"`
}

// AggregationConfig holds settings for the trend aggregation stage.
type AggregationConfig struct {
	// WindowSize is the span of one aggregation window (default 168h).
	WindowSize time.Duration `json:"window_size" yaml:"window_size"`
}

// ScoreWeights are the relative weights of the readiness score components.
// They are normalized by their sum, so only ratios matter.
type ScoreWeights struct {
	Prevalence  float64 `json:"prevalence" yaml:"prevalence"`
	Persistence float64 `json:"persistence" yaml:"persistence"`
	Growth      float64 `json:"growth" yaml:"growth"`
}

// ScoringConfig holds settings for the market readiness scorer.
type ScoringConfig struct {
	// Weights combine the score components (defaults 0.5/0.3/0.2).
	Weights ScoreWeights `json:"weights" yaml:"weights"`

	// PersistenceWindows is how many trailing windows count toward the
	// persistence component (default 6).
	PersistenceWindows int `json:"persistence_windows" yaml:"persistence_windows"`

	// GrowthWindows is how many trailing window deltas count toward the
	// growth component (default 3).
	GrowthWindows int `json:"growth_windows" yaml:"growth_windows"`
}

// StoreConfig holds settings for the persistence layer.
type StoreConfig struct {
	// DataDir is the base directory for pipeline data (contains index/).
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Extraction    ExtractionConfig    `json:"extraction" yaml:"extraction"`
	Normalization NormalizationConfig `json:"normalization" yaml:"normalization"`
	Aggregation   AggregationConfig   `json:"aggregation" yaml:"aggregation"`
	Scoring       ScoringConfig       `json:"scoring" yaml:"scoring"`
	Store         StoreConfig         `json:"store" yaml:"store"`
}
