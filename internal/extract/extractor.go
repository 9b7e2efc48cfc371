// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mlpulse/skill-pulse/pkg/types"
)

const defaultWorkers = 5

// Success pairs a document with the raw mentions extracted from it.
type Success struct {
	Document types.Document
	Mentions []types.RawMention
}

// Failure pairs a document with the error that stopped its extraction.
type Failure struct {
	Document types.Document
	Err      error
}

// BatchResult holds the outcome of a batch extraction run. Every input
// document appears in exactly one of Successes or Failures.
type BatchResult struct {
	Successes []Success
	Failures  []Failure
}

// Total returns the number of documents processed.
func (r BatchResult) Total() int {
	return len(r.Successes) + len(r.Failures)
}

// HasFailures reports whether any documents failed.
func (r BatchResult) HasFailures() bool {
	return len(r.Failures) > 0
}

// Extractor runs the extraction client over batches of documents with
// bounded concurrency. The shared rate limiter inside the client bounds the
// external call rate regardless of worker count.
type Extractor struct {
	client  *Client
	workers int
	log     *zap.Logger
}

// NewExtractor builds an Extractor. workers <= 0 selects the default (5).
func NewExtractor(client *Client, workers int, log *zap.Logger) *Extractor {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{client: client, workers: workers, log: log}
}

// ExtractBatch processes all documents and collects per-document outcomes.
// One document's failure never aborts the batch. On cancellation, no new
// backend calls are issued: in-flight calls drain, documents not yet started
// are recorded as failed with the cancellation error, and the partial result
// is returned together with ctx.Err().
func (e *Extractor) ExtractBatch(ctx context.Context, docs []types.Document) (BatchResult, error) {
	var (
		mu     sync.Mutex
		result BatchResult
	)

	g := new(errgroup.Group)
	g.SetLimit(e.workers)

	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			mentions, err := e.extractOne(ctx, doc)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.log.Warn("document extraction failed",
					zap.String("document_id", doc.ID),
					zap.Error(err))
				result.Failures = append(result.Failures, Failure{Document: doc, Err: err})
				return nil
			}
			e.log.Debug("document extracted",
				zap.String("document_id", doc.ID),
				zap.Int("mentions", len(mentions)))
			result.Successes = append(result.Successes, Success{Document: doc, Mentions: mentions})
			return nil
		})
	}

	g.Wait()
	return result, ctx.Err()
}

// extractOne gates a single document on the batch context. The context is
// checked before the client call so a cancelled batch stops spending quota
// promptly; the client detaches calls already past the rate limiter so they
// drain instead of being abandoned mid-request.
func (e *Extractor) extractOne(ctx context.Context, doc types.Document) ([]types.RawMention, error) {
	if err := ctx.Err(); err != nil {
		return nil, Transient(err)
	}
	return e.client.Extract(ctx, doc)
}
