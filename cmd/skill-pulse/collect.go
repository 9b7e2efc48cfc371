// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/mlpulse/skill-pulse/internal/extract"
	"github.com/mlpulse/skill-pulse/internal/metrics"
	"github.com/mlpulse/skill-pulse/internal/normalize"
	"github.com/mlpulse/skill-pulse/internal/ratelimit"
	"github.com/mlpulse/skill-pulse/internal/store"
	"github.com/mlpulse/skill-pulse/pkg/types"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Extract and normalize skill mentions from a document batch",
	Long: `Collect reads Document records from a YAML file, extracts skill mentions
via the Gemini API under the configured rate limit, normalizes them against
the alias table, and persists canonical mentions to the local database.

Per-document failures are collected, not fatal: collect reports a summary
and exits nonzero only when every document failed or the run itself errored.`,
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().String("input", "", "YAML file with document records (required)")
	collectCmd.Flags().String("model", "gemini-2.5-flash", "Gemini model identifier")
	collectCmd.Flags().String("api-key", "", "Gemini API key (default: .secrets/gemini-api-key)")
	collectCmd.Flags().Int("workers", 5, "concurrent extraction workers")
	collectCmd.Flags().Int("quota", 15, "extraction calls allowed per rate window")
	collectCmd.Flags().Duration("rate-window", time.Minute, "rolling rate-limit window")
	collectCmd.Flags().Int("max-retries", 3, "attempts per document on transient failures")
	collectCmd.Flags().String("aliases", "data/aliases.yaml", "alias table file")
	collectCmd.Flags().Bool("queue-unknown", false, "record unmatched skills for manual curation")
	collectCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")
	if input == "" {
		return fmt.Errorf("--input is required")
	}

	docs, err := loadDocuments(input)
	if err != nil {
		return err
	}

	cfg := collectConfig(cmd)
	if cfg.Extraction.APIKey == "" {
		return fmt.Errorf("no Gemini API key: pass --api-key or create .secrets/gemini-api-key")
	}

	// Ctrl-C stops issuing new extraction calls; in-flight calls drain and
	// collected results are still persisted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		go serveMetrics(addr)
	}

	backend, err := extract.NewGeminiBackend(ctx, cfg.Extraction.APIKey, cfg.Extraction.Model)
	if err != nil {
		return err
	}

	limiter := ratelimit.New(cfg.Extraction.RateLimit)
	client := extract.NewClient(backend, limiter, cfg.Extraction.MaxRetries, log)
	extractor := extract.NewExtractor(client, cfg.Extraction.Workers, log)

	normalizer, err := normalize.New(cfg.Normalization, log)
	if err != nil {
		return err
	}

	st, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	runID := uuid.NewString()
	log.Info("starting collection run",
		zap.String("run_id", runID),
		zap.Int("documents", len(docs)),
		zap.String("model", cfg.Extraction.Model))

	result, runErr := extractor.ExtractBatch(ctx, docs)

	var mentions []types.CanonicalMention
	dropped := 0
	for _, success := range result.Successes {
		for _, raw := range success.Mentions {
			cm, ok := normalizer.Normalize(success.Document, raw)
			if !ok {
				dropped++
				continue
			}
			mentions = append(mentions, cm)
		}
	}

	succeededDocs := make([]types.Document, 0, len(result.Successes))
	for _, success := range result.Successes {
		succeededDocs = append(succeededDocs, success.Document)
	}

	// Persist on a fresh context so a cancelled run still saves its partial
	// results.
	saveCtx := context.Background()
	if err := st.SaveRun(saveCtx, runID, succeededDocs, mentions); err != nil {
		return err
	}
	if unknown := normalizer.Unknown(); len(unknown) > 0 {
		if err := st.QueueUnknown(saveCtx, unknown); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "queued %d unknown skill(s) for curation\n", len(unknown))
	}

	for _, failure := range result.Failures {
		fmt.Fprintf(os.Stdout, "failed  %s: %v\n", failure.Document.ID, failure.Err)
	}
	fmt.Fprintf(os.Stdout, "\nextracted: %d, failed: %d, mentions: %d, dropped: %d\n",
		len(result.Successes), len(result.Failures), len(mentions), dropped)

	if runErr != nil {
		return fmt.Errorf("collection interrupted: %w", runErr)
	}
	if result.HasFailures() && len(result.Successes) == 0 {
		return fmt.Errorf("all %d document(s) failed extraction", len(result.Failures))
	}
	return nil
}

// collectConfig resolves the collect configuration from flags, config file,
// and secrets.
func collectConfig(cmd *cobra.Command) types.PipelineConfig {
	model, _ := cmd.Flags().GetString("model")
	apiKey, _ := cmd.Flags().GetString("api-key")
	workers, _ := cmd.Flags().GetInt("workers")
	quota, _ := cmd.Flags().GetInt("quota")
	rateWindow, _ := cmd.Flags().GetDuration("rate-window")
	maxRetries, _ := cmd.Flags().GetInt("max-retries")
	aliases, _ := cmd.Flags().GetString("aliases")
	queueUnknown, _ := cmd.Flags().GetBool("queue-unknown")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	return types.PipelineConfig{
		Extraction: types.ExtractionConfig{
			AIConfig: types.AIConfig{
				Model:      model,
				APIKey:     secretDefault("gemini-api-key", apiKey),
				MaxRetries: maxRetries,
			},
			Workers: workers,
			RateLimit: types.RateLimitConfig{
				Quota:  quota,
				Window: rateWindow,
			},
		},
		Normalization: types.NormalizationConfig{
			AliasFile:    aliases,
			QueueUnknown: queueUnknown,
		},
		Store: types.StoreConfig{DataDir: dataDir},
	}
}

// documentFile is the on-disk input format for collect.
type documentFile struct {
	Documents []types.Document `yaml:"documents"`
}

// loadDocuments reads and validates a document batch. Upstream collectors
// guarantee unique ids; a duplicate here means a malformed input file.
func loadDocuments(path string) ([]types.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading documents file %s: %w", path, err)
	}
	var f documentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing documents file %s: %w", path, err)
	}
	if len(f.Documents) == 0 {
		return nil, fmt.Errorf("documents file %s contains no documents", path)
	}

	seen := make(map[string]bool, len(f.Documents))
	for i, doc := range f.Documents {
		if doc.ID == "" {
			return nil, fmt.Errorf("document %d: empty id", i)
		}
		if seen[doc.ID] {
			return nil, fmt.Errorf("duplicate document id %q", doc.ID)
		}
		seen[doc.ID] = true
		if !types.ValidSource(doc.Source) {
			return nil, fmt.Errorf("document %s: unknown source %q", doc.ID, doc.Source)
		}
	}
	return f.Documents, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics listener stopped", zap.Error(err))
	}
}
