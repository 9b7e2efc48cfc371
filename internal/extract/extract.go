// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns document text into raw skill mentions via a
// Generative AI backend, under a shared rate-limit budget.
package extract

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mlpulse/skill-pulse/internal/metrics"
	"github.com/mlpulse/skill-pulse/internal/ratelimit"
	"github.com/mlpulse/skill-pulse/pkg/types"
)

// Backend abstracts the Generative AI API so tests can supply a mock.
// Each implementation handles one document's text and returns the parsed
// response. Implementations classify their failures with Transient or
// Permanent.
type Backend interface {
	Extract(ctx context.Context, text string) (Response, error)
}

// Response is the structured response from the AI backend for one document.
type Response struct {
	Skills []ResponseSkill `json:"skills"`
}

// ResponseSkill is a single skill mention as returned by the AI backend.
// Confidence is a pointer so an explicit zero is distinguishable from an
// omitted field.
type ResponseSkill struct {
	Text       string   `json:"text"`
	Category   string   `json:"category,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

const defaultMaxRetries = 3

// Client performs one extraction call per document with retry on transient
// failures. Every attempt, including retries, consumes one rate-limiter
// token, so the external call budget is honored even while retrying.
type Client struct {
	backend    Backend
	limiter    *ratelimit.Limiter
	maxRetries int
	log        *zap.Logger
}

// NewClient builds a Client. maxRetries <= 0 selects the default (3).
func NewClient(backend Backend, limiter *ratelimit.Limiter, maxRetries int, log *zap.Logger) *Client {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{backend: backend, limiter: limiter, maxRetries: maxRetries, log: log}
}

// Extract runs the backend over doc's text and returns validated raw
// mentions. Transient failures are retried with exponential backoff (1s, 2s,
// ...) up to the configured attempt cap; permanent failures surface
// immediately. A document with blank text fails permanently without spending
// a token.
func (c *Client) Extract(ctx context.Context, doc types.Document) ([]types.RawMention, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, Permanent(fmt.Errorf("document %s has empty text", doc.ID))
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(math.Pow(2, float64(attempt-2))) * backoffBase
			c.log.Debug("retrying extraction",
				zap.String("document_id", doc.ID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))
			metrics.ExtractionRetries.Inc()
			select {
			case <-ctx.Done():
				return nil, Transient(ctx.Err())
			case <-time.After(backoff):
			}
		}

		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, Transient(err)
		}

		// Once a token is spent the call runs to completion even if the
		// batch is cancelled: an abandoned request would still count
		// against the upstream quota.
		metrics.ExtractionAttempts.Inc()
		resp, err := c.backend.Extract(context.WithoutCancel(ctx), doc.Text)
		if err == nil {
			mentions, verr := convertMentions(resp.Skills, doc.ID)
			if verr != nil {
				// A response that fails schema validation is garbage, not a
				// glitch: retrying would spend budget re-asking the same
				// question.
				metrics.ExtractionFailures.WithLabelValues(string(KindPermanent)).Inc()
				return nil, Permanent(verr)
			}
			return mentions, nil
		}

		if IsPermanent(err) {
			metrics.ExtractionFailures.WithLabelValues(string(KindPermanent)).Inc()
			return nil, err
		}
		lastErr = err
	}

	metrics.ExtractionFailures.WithLabelValues(string(KindTransient)).Inc()
	return nil, Transient(fmt.Errorf("after %d attempts: %w", c.maxRetries, lastErr))
}

// convertMentions validates backend skills and converts them to RawMentions.
// Any violation fails the whole response: a backend that breaks the schema
// once cannot be trusted for the rest of the list.
func convertMentions(skills []ResponseSkill, documentID string) ([]types.RawMention, error) {
	var mentions []types.RawMention
	for i, s := range skills {
		if strings.TrimSpace(s.Text) == "" {
			return nil, fmt.Errorf("skill %d: empty text", i)
		}
		category := types.SkillCategory(s.Category)
		if !types.ValidCategory(category) {
			return nil, fmt.Errorf("skill %d: unknown category %q", i, s.Category)
		}
		// The backend may omit confidence entirely; an explicit zero is kept.
		confidence := 1.0
		if s.Confidence != nil {
			if *s.Confidence < 0.0 || *s.Confidence > 1.0 {
				return nil, fmt.Errorf("skill %d: confidence %f out of range [0,1]", i, *s.Confidence)
			}
			confidence = *s.Confidence
		}
		mentions = append(mentions, types.RawMention{
			DocumentID: documentID,
			RawText:    strings.TrimSpace(s.Text),
			Category:   category,
			Confidence: confidence,
		})
	}
	return mentions, nil
}
