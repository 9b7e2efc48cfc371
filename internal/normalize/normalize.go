// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize maps raw extracted skill strings to canonical skill
// identities using a curated alias table and fuzzy matching.
package normalize

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/mlpulse/skill-pulse/internal/metrics"
	"github.com/mlpulse/skill-pulse/pkg/types"
)

const defaultFuzzyThreshold = 0.85

// AliasEntry is one canonical skill with its curated surface forms.
type AliasEntry struct {
	// ID is the canonical skill identifier (e.g. "pytorch").
	ID string `json:"id" yaml:"id"`

	// Name is the canonical display name (e.g. "PyTorch").
	Name string `json:"name" yaml:"name"`

	// Aliases lists additional surface forms that resolve to this skill.
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// aliasFile is the on-disk alias table format.
type aliasFile struct {
	Skills []AliasEntry `yaml:"skills"`
}

// candidate is one surface form prepared for fuzzy comparison.
type candidate struct {
	cleaned string
	skillID string
}

// aliasTable is an immutable lookup structure built from alias entries.
// Normalization reads a snapshot pointer, so a curation update never exposes
// a half-built table to in-flight lookups.
type aliasTable struct {
	exact      map[string]string // lowercased surface form -> skill id
	cleaned    map[string]string // cleaned surface form -> skill id
	candidates []candidate
}

// UnknownSkill is a surface form that matched nothing, queued for manual
// curation.
type UnknownSkill struct {
	RawText   string
	Count     int
	FirstSeen time.Time
}

// Normalizer resolves raw mentions against the current alias snapshot.
// Safe for concurrent use; lookups are lock-free on the alias table.
type Normalizer struct {
	table        atomic.Pointer[aliasTable]
	threshold    float64
	queueUnknown bool
	log          *zap.Logger

	mu      sync.Mutex
	unknown map[string]*UnknownSkill
}

// New builds a Normalizer from cfg, loading the alias file when one is
// configured.
func New(cfg types.NormalizationConfig, log *zap.Logger) (*Normalizer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	threshold := cfg.FuzzyThreshold
	if threshold <= 0 {
		threshold = defaultFuzzyThreshold
	}

	n := &Normalizer{
		threshold:    threshold,
		queueUnknown: cfg.QueueUnknown,
		log:          log,
		unknown:      make(map[string]*UnknownSkill),
	}
	n.table.Store(buildTable(nil))

	if cfg.AliasFile != "" {
		entries, err := LoadAliasFile(cfg.AliasFile)
		if err != nil {
			return nil, err
		}
		n.SetAliases(entries)
	}
	return n, nil
}

// LoadAliasFile reads a YAML alias table from path.
func LoadAliasFile(path string) ([]AliasEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading alias file %s: %w", path, err)
	}
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing alias file %s: %w", path, err)
	}
	if err := ValidateAliases(f.Skills); err != nil {
		return nil, fmt.Errorf("alias file %s: %w", path, err)
	}
	return f.Skills, nil
}

// ValidateAliases checks entries for empty ids and surface forms claimed by
// more than one skill. A surface form conflicts if its lowercased form or its
// cleaned form already belongs to another skill; the cleaned check covers
// forms that only collide after punctuation stripping ("Fine-tuning" vs
// "fine tuning"), which the lookup table would otherwise resolve silently in
// entry order.
func ValidateAliases(entries []AliasEntry) error {
	seen := make(map[string]string)
	cleanedSeen := make(map[string]string)
	for i, e := range entries {
		if strings.TrimSpace(e.ID) == "" {
			return fmt.Errorf("entry %d: empty skill id", i)
		}
		for _, surface := range append([]string{e.Name, e.ID}, e.Aliases...) {
			key := strings.ToLower(strings.TrimSpace(surface))
			if key == "" {
				continue
			}
			if owner, ok := seen[key]; ok && owner != e.ID {
				return fmt.Errorf("surface form %q mapped to both %q and %q", surface, owner, e.ID)
			}
			seen[key] = e.ID

			ck := cleanKey(surface)
			if ck == "" {
				continue
			}
			if owner, ok := cleanedSeen[ck]; ok && owner != e.ID {
				return fmt.Errorf("surface form %q reduces to %q, already claimed by %q", surface, ck, owner)
			}
			cleanedSeen[ck] = e.ID
		}
	}
	return nil
}

// SetAliases replaces the alias table with a freshly built snapshot.
// In-flight normalizations keep reading the table they started with.
func (n *Normalizer) SetAliases(entries []AliasEntry) {
	n.table.Store(buildTable(entries))
	n.log.Info("alias table updated", zap.Int("skills", len(entries)))
}

func buildTable(entries []AliasEntry) *aliasTable {
	t := &aliasTable{
		exact:   make(map[string]string),
		cleaned: make(map[string]string),
	}
	for _, e := range entries {
		for _, surface := range append([]string{e.Name, e.ID}, e.Aliases...) {
			key := strings.ToLower(strings.TrimSpace(surface))
			if key == "" {
				continue
			}
			t.exact[key] = e.ID
			c := cleanKey(surface)
			if c == "" {
				continue
			}
			if _, ok := t.cleaned[c]; !ok {
				t.cleaned[c] = e.ID
			}
			t.candidates = append(t.candidates, candidate{cleaned: c, skillID: e.ID})
		}
	}
	return t
}

// Normalize resolves one raw mention against the current alias snapshot.
// Lookup order: exact case-insensitive match, cleaned match, then an
// unambiguous fuzzy match. Returns ok=false when no stage produces a
// confident single candidate; unknown skills are never auto-created.
//
// The result is a pure function of the raw text and the alias snapshot.
func (n *Normalizer) Normalize(doc types.Document, raw types.RawMention) (types.CanonicalMention, bool) {
	t := n.table.Load()

	skillID, outcome := t.resolve(raw.RawText, n.threshold)
	metrics.NormalizationOutcomes.WithLabelValues(outcome).Inc()

	if skillID == "" {
		if outcome == outcomeUnknown && n.queueUnknown {
			n.recordUnknown(raw.RawText)
		}
		n.log.Debug("no canonical match",
			zap.String("raw_text", raw.RawText),
			zap.String("outcome", outcome))
		return types.CanonicalMention{}, false
	}

	return types.CanonicalMention{
		SkillID:    skillID,
		DocumentID: raw.DocumentID,
		Source:     doc.Source,
		Timestamp:  doc.PublishedAt,
		Category:   raw.Category,
	}, true
}

const (
	outcomeExact     = "exact"
	outcomeCleaned   = "cleaned"
	outcomeFuzzy     = "fuzzy"
	outcomeAmbiguous = "ambiguous"
	outcomeUnknown   = "unknown"
)

// resolve runs the three lookup stages and reports which one decided.
func (t *aliasTable) resolve(rawText string, threshold float64) (string, string) {
	exactKey := strings.ToLower(strings.TrimSpace(rawText))
	if exactKey == "" {
		return "", outcomeUnknown
	}
	if id, ok := t.exact[exactKey]; ok {
		return id, outcomeExact
	}

	cleanedKey := cleanKey(rawText)
	if cleanedKey == "" {
		return "", outcomeUnknown
	}
	if id, ok := t.cleaned[cleanedKey]; ok {
		return id, outcomeCleaned
	}

	id, ambiguous := fuzzyMatch(cleanedKey, t.candidates, threshold)
	if ambiguous {
		return "", outcomeAmbiguous
	}
	if id == "" {
		return "", outcomeUnknown
	}
	return id, outcomeFuzzy
}

// recordUnknown counts an unmatched surface form for later curation.
func (n *Normalizer) recordUnknown(rawText string) {
	key := strings.ToLower(strings.TrimSpace(rawText))
	n.mu.Lock()
	defer n.mu.Unlock()
	if u, ok := n.unknown[key]; ok {
		u.Count++
		return
	}
	n.unknown[key] = &UnknownSkill{RawText: rawText, Count: 1, FirstSeen: time.Now().UTC()}
}

// Unknown returns the queued unknown surface forms collected so far and
// clears the queue.
func (n *Normalizer) Unknown() []UnknownSkill {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]UnknownSkill, 0, len(n.unknown))
	for _, u := range n.unknown {
		out = append(out, *u)
	}
	n.unknown = make(map[string]*UnknownSkill)
	return out
}
