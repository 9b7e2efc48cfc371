package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mlpulse/skill-pulse/internal/extract"
	"github.com/mlpulse/skill-pulse/internal/normalize"
	"github.com/mlpulse/skill-pulse/internal/ratelimit"
	"github.com/mlpulse/skill-pulse/internal/score"
	"github.com/mlpulse/skill-pulse/internal/store"
	"github.com/mlpulse/skill-pulse/internal/trend"
	"github.com/mlpulse/skill-pulse/pkg/types"
)

// --- loadDocuments ---

func conf(v float64) *float64 { return &v }

func writeDocFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docs.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDocuments(t *testing.T) {
	path := writeDocFile(t, `documents:
  - id: "2608.01234"
    source: paper
    text: "We fine-tune a transformer with LoRA."
    published_at: 2026-08-01T00:00:00Z
  - id: pytorch/pytorch
    source: repo
    text: "Tensors and dynamic neural networks."
    published_at: 2026-08-02T00:00:00Z
`)

	docs, err := loadDocuments(path)
	if err != nil {
		t.Fatalf("loadDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[0].ID != "2608.01234" || docs[0].Source != types.SourcePaper {
		t.Errorf("docs[0] = %+v", docs[0])
	}
	if docs[1].Source != types.SourceRepo {
		t.Errorf("docs[1].Source = %q, want repo", docs[1].Source)
	}
}

func TestLoadDocumentsValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "empty file",
			content: "documents: []\n",
			wantErr: "no documents",
		},
		{
			name: "missing id",
			content: `documents:
  - source: paper
    text: "Text."
`,
			wantErr: "empty id",
		},
		{
			name: "duplicate id",
			content: `documents:
  - id: d1
    source: paper
    text: "One."
  - id: d1
    source: paper
    text: "Two."
`,
			wantErr: "duplicate document id",
		},
		{
			name: "unknown source",
			content: `documents:
  - id: d1
    source: newsletter
    text: "Text."
`,
			wantErr: "unknown source",
		},
		{
			name:    "not yaml",
			content: "{{{",
			wantErr: "parsing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadDocuments(writeDocFile(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadDocumentsMissingFile(t *testing.T) {
	if _, err := loadDocuments(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

// --- full pipeline against a stub backend ---

// stubBackend answers from canned responses keyed by document text.
type stubBackend struct {
	responses map[string]extract.Response
}

func (s *stubBackend) Extract(_ context.Context, text string) (extract.Response, error) {
	resp, ok := s.responses[text]
	if !ok {
		return extract.Response{}, extract.Permanent(fmt.Errorf("unexpected document text %q", text))
	}
	return resp, nil
}

func TestPipelineEndToEnd(t *testing.T) {
	published := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	window := types.TimeWindow{Start: published.Add(-24 * time.Hour), End: published.Add(24 * time.Hour)}

	backend := &stubBackend{responses: map[string]extract.Response{}}
	var docs []types.Document
	for i := 1; i <= 10; i++ {
		text := fmt.Sprintf("document body %d", i)
		if i > 8 {
			// Two documents with blank text fail extraction permanently.
			text = "   "
		}
		docs = append(docs, types.Document{
			ID:          fmt.Sprintf("d%02d", i),
			Source:      types.SourcePaper,
			Text:        text,
			PublishedAt: published,
			FetchedAt:   published,
		})

		skills := []extract.ResponseSkill{
			{Text: "PyTorch", Category: "framework", Confidence: conf(0.95)},
		}
		if i <= 4 {
			skills = append(skills, extract.ResponseSkill{Text: "transformers", Category: "technique", Confidence: conf(0.9)})
		}
		if i == 1 {
			// Not in the alias table; dropped during normalization.
			skills = append(skills, extract.ResponseSkill{Text: "FlashInfer", Confidence: conf(0.7)})
		}
		backend.responses[text] = extract.Response{Skills: skills}
	}

	limiter := ratelimit.New(types.RateLimitConfig{Quota: 100, Window: time.Minute})
	client := extract.NewClient(backend, limiter, 3, nil)
	extractor := extract.NewExtractor(client, 4, nil)

	ctx := context.Background()
	result, err := extractor.ExtractBatch(ctx, docs)
	if err != nil {
		t.Fatalf("ExtractBatch: %v", err)
	}
	if len(result.Successes) != 8 || len(result.Failures) != 2 {
		t.Fatalf("got %d successes / %d failures, want 8 / 2",
			len(result.Successes), len(result.Failures))
	}
	for _, f := range result.Failures {
		if !extract.IsPermanent(f.Err) {
			t.Errorf("document %s: blank text should fail permanently, got %v", f.Document.ID, f.Err)
		}
	}

	normalizer, err := normalize.New(types.NormalizationConfig{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	normalizer.SetAliases([]normalize.AliasEntry{
		{ID: "pytorch", Name: "PyTorch", Aliases: []string{"torch"}},
		{ID: "transformer", Name: "Transformer Architecture", Aliases: []string{"transformers"}},
	})

	var mentions []types.CanonicalMention
	dropped := 0
	var succeeded []types.Document
	for _, success := range result.Successes {
		succeeded = append(succeeded, success.Document)
		for _, raw := range success.Mentions {
			cm, ok := normalizer.Normalize(success.Document, raw)
			if !ok {
				dropped++
				continue
			}
			mentions = append(mentions, cm)
		}
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1 (the unmatched skill)", dropped)
	}
	if len(mentions) != 12 {
		t.Fatalf("got %d canonical mentions, want 12 (8 pytorch + 4 transformer)", len(mentions))
	}

	st, err := store.NewStore(types.StoreConfig{DataDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.SaveRun(ctx, "run-1", succeeded, mentions); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	totalDocs, err := st.CountDocuments(ctx, window)
	if err != nil {
		t.Fatal(err)
	}
	if totalDocs != 8 {
		t.Fatalf("CountDocuments = %d, want 8 (only successful documents persisted)", totalDocs)
	}

	stored, err := st.MentionsBetween(ctx, window.Start, window.End)
	if err != nil {
		t.Fatal(err)
	}
	stats := trend.Aggregate(stored, totalDocs, window)
	if len(stats) != 2 {
		t.Fatalf("got %d stats, want 2", len(stats))
	}
	if stats[0].SkillID != "pytorch" || stats[0].Rank != 1 {
		t.Errorf("stats[0] = %+v, want pytorch at rank 1", stats[0])
	}
	if stats[0].MentionCount != 8 || stats[0].PrevalenceRatio != 1.0 {
		t.Errorf("pytorch: mentions %d prevalence %f, want 8 and 1.0",
			stats[0].MentionCount, stats[0].PrevalenceRatio)
	}
	if stats[1].SkillID != "transformer" || stats[1].PrevalenceRatio != 0.5 {
		t.Errorf("stats[1] = %+v, want transformer with prevalence 0.5", stats[1])
	}
	if err := st.SaveWindowStats(ctx, stats); err != nil {
		t.Fatalf("SaveWindowStats: %v", err)
	}

	scorer := score.NewScorer(types.ScoringConfig{})
	for _, stat := range stats {
		history, err := st.StatsHistory(ctx, stat.SkillID, window.Start)
		if err != nil {
			t.Fatal(err)
		}
		sc := scorer.Score(stat, history)
		if sc.Score < 0 || sc.Score > 1 {
			t.Errorf("score for %s = %f, outside [0,1]", stat.SkillID, sc.Score)
		}
		if sc.Components.Persistence != 0 || sc.Components.Growth != 0 {
			t.Errorf("first-ever window for %s should score on prevalence alone: %+v",
				stat.SkillID, sc.Components)
		}
	}
}
