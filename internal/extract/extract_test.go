package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/mlpulse/skill-pulse/internal/ratelimit"
	"github.com/mlpulse/skill-pulse/pkg/types"
)

// --- mock backends ---

// failNTimesBackend fails the first N calls with a transient error, then
// succeeds with the configured response.
type failNTimesBackend struct {
	failures  int
	callCount int
	response  Response
	permanent bool
}

func (f *failNTimesBackend) Extract(_ context.Context, _ string) (Response, error) {
	f.callCount++
	if f.callCount <= f.failures {
		err := fmt.Errorf("backend error (call %d)", f.callCount)
		if f.permanent {
			return Response{}, Permanent(err)
		}
		return Response{}, Transient(err)
	}
	return f.response, nil
}

// textKeyedBackend answers by document text, failing texts listed in errs.
// Safe for concurrent use.
type textKeyedBackend struct {
	mu        sync.Mutex
	responses map[string]Response
	errs      map[string]error
	calls     int
}

func (b *textKeyedBackend) Extract(_ context.Context, text string) (Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if err, ok := b.errs[text]; ok {
		return Response{}, err
	}
	return b.responses[text], nil
}

func TestMain(m *testing.M) {
	// Override backoff to avoid real sleeps in retry tests.
	backoffBase = time.Millisecond
	os.Exit(m.Run())
}

func testLimiter(quota int) *ratelimit.Limiter {
	return ratelimit.New(types.RateLimitConfig{Quota: quota, Window: time.Minute})
}

func testDoc(id, text string) types.Document {
	return types.Document{
		ID:          id,
		Source:      types.SourcePaper,
		Text:        text,
		PublishedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func conf(v float64) *float64 { return &v }

var oneSkill = Response{Skills: []ResponseSkill{
	{Text: "PyTorch", Category: "framework", Confidence: conf(0.9)},
}}

// --- Client retry behavior ---

func TestClientRetry(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		maxRetries int
		wantCalls  int
		wantErr    bool
	}{
		{"succeeds first try", 0, 3, 1, false},
		{"succeeds after one transient failure", 1, 3, 2, false},
		{"succeeds on last attempt", 2, 3, 3, false},
		{"exhausts attempts", 5, 3, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &failNTimesBackend{failures: tt.failures, response: oneSkill}
			client := NewClient(backend, testLimiter(100), tt.maxRetries, nil)

			mentions, err := client.Extract(context.Background(), testDoc("doc1", "some text"))

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if IsPermanent(err) {
					t.Errorf("exhausted retries should surface as transient, got permanent: %v", err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(mentions) != 1 {
					t.Errorf("got %d mentions, want 1", len(mentions))
				}
			}
			if backend.callCount != tt.wantCalls {
				t.Errorf("backend calls = %d, want %d", backend.callCount, tt.wantCalls)
			}
		})
	}
}

func TestClientPermanentFailureNotRetried(t *testing.T) {
	backend := &failNTimesBackend{failures: 5, permanent: true}
	client := NewClient(backend, testLimiter(100), 3, nil)

	_, err := client.Extract(context.Background(), testDoc("doc1", "some text"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
	if backend.callCount != 1 {
		t.Errorf("backend calls = %d, want 1 (permanent failures must not retry)", backend.callCount)
	}
}

func TestClientEmptyTextFailsWithoutToken(t *testing.T) {
	backend := &failNTimesBackend{response: oneSkill}
	limiter := testLimiter(10)
	client := NewClient(backend, limiter, 3, nil)

	_, err := client.Extract(context.Background(), testDoc("doc1", "   \n\t"))
	if !IsPermanent(err) {
		t.Fatalf("expected permanent error for empty text, got %v", err)
	}
	if backend.callCount != 0 {
		t.Errorf("backend calls = %d, want 0", backend.callCount)
	}
	if got := limiter.Remaining(); got != 10 {
		t.Errorf("Remaining() = %d, want 10 (no token spent on empty text)", got)
	}
}

func TestClientConsumesOneTokenPerAttempt(t *testing.T) {
	backend := &failNTimesBackend{failures: 5}
	limiter := testLimiter(10)
	client := NewClient(backend, limiter, 3, nil)

	_, err := client.Extract(context.Background(), testDoc("doc1", "some text"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := limiter.Remaining(); got != 7 {
		t.Errorf("Remaining() = %d, want 7 (3 attempts, one token each)", got)
	}
}

func TestClientSchemaViolationIsPermanent(t *testing.T) {
	backend := &failNTimesBackend{response: Response{Skills: []ResponseSkill{
		{Text: "PyTorch", Category: "sentiment", Confidence: conf(0.9)},
	}}}
	client := NewClient(backend, testLimiter(100), 3, nil)

	_, err := client.Extract(context.Background(), testDoc("doc1", "some text"))
	if !IsPermanent(err) {
		t.Fatalf("expected permanent error for schema violation, got %v", err)
	}
	if backend.callCount != 1 {
		t.Errorf("backend calls = %d, want 1 (invalid responses must not be re-asked)", backend.callCount)
	}
}

// --- convertMentions ---

func TestConvertMentions(t *testing.T) {
	tests := []struct {
		name    string
		skills  []ResponseSkill
		want    int
		wantErr bool
	}{
		{
			name: "valid skills",
			skills: []ResponseSkill{
				{Text: "PyTorch", Category: "framework", Confidence: conf(0.95)},
				{Text: "Knowledge Distillation", Category: "technique", Confidence: conf(0.9)},
			},
			want: 2,
		},
		{
			name:   "empty category accepted",
			skills: []ResponseSkill{{Text: "CUDA", Confidence: conf(0.8)}},
			want:   1,
		},
		{
			name:    "empty text rejected",
			skills:  []ResponseSkill{{Text: "  ", Category: "framework", Confidence: conf(0.5)}},
			wantErr: true,
		},
		{
			name:    "unknown category rejected",
			skills:  []ResponseSkill{{Text: "PyTorch", Category: "vibe", Confidence: conf(0.5)}},
			wantErr: true,
		},
		{
			name:    "confidence out of range rejected",
			skills:  []ResponseSkill{{Text: "PyTorch", Confidence: conf(1.5)}},
			wantErr: true,
		},
		{
			name:    "negative confidence rejected",
			skills:  []ResponseSkill{{Text: "PyTorch", Confidence: conf(-0.1)}},
			wantErr: true,
		},
		{
			name:    "one bad skill fails the whole response",
			skills:  []ResponseSkill{{Text: "PyTorch", Confidence: conf(0.9)}, {Text: "", Confidence: conf(0.9)}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mentions, err := convertMentions(tt.skills, "doc1")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(mentions) != tt.want {
				t.Errorf("got %d mentions, want %d", len(mentions), tt.want)
			}
			for _, m := range mentions {
				if m.DocumentID != "doc1" {
					t.Errorf("DocumentID = %q, want %q", m.DocumentID, "doc1")
				}
			}
		})
	}
}

func TestConvertMentionsDefaultsConfidence(t *testing.T) {
	mentions, err := convertMentions([]ResponseSkill{{Text: "JAX"}}, "doc1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mentions[0].Confidence != 1.0 {
		t.Errorf("Confidence = %f, want 1.0 (omitted confidence defaults to full)", mentions[0].Confidence)
	}
}

func TestConvertMentionsKeepsExplicitZeroConfidence(t *testing.T) {
	mentions, err := convertMentions([]ResponseSkill{{Text: "JAX", Confidence: conf(0)}}, "doc1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mentions[0].Confidence != 0 {
		t.Errorf("Confidence = %f, want 0 (explicit zero is not an omission)", mentions[0].Confidence)
	}
}

// --- ExtractBatch ---

func TestExtractBatchCoverage(t *testing.T) {
	backend := &textKeyedBackend{
		responses: map[string]Response{
			"good one":   oneSkill,
			"good two":   oneSkill,
			"good three": oneSkill,
		},
		errs: map[string]error{
			"bad one": Permanent(fmt.Errorf("unparseable")),
			"bad two": Permanent(fmt.Errorf("unparseable")),
		},
	}
	client := NewClient(backend, testLimiter(100), 3, nil)
	extractor := NewExtractor(client, 3, nil)

	docs := []types.Document{
		testDoc("d1", "good one"),
		testDoc("d2", "bad one"),
		testDoc("d3", "good two"),
		testDoc("d4", "bad two"),
		testDoc("d5", "good three"),
	}

	result, err := extractor.ExtractBatch(context.Background(), docs)
	if err != nil {
		t.Fatalf("ExtractBatch: %v", err)
	}

	if result.Total() != len(docs) {
		t.Errorf("Total() = %d, want %d", result.Total(), len(docs))
	}
	if len(result.Successes) != 3 || len(result.Failures) != 2 {
		t.Errorf("got %d successes / %d failures, want 3 / 2",
			len(result.Successes), len(result.Failures))
	}

	// Every input document lands in exactly one of the two lists.
	seen := make(map[string]int)
	for _, s := range result.Successes {
		seen[s.Document.ID]++
	}
	for _, f := range result.Failures {
		seen[f.Document.ID]++
	}
	for _, doc := range docs {
		if seen[doc.ID] != 1 {
			t.Errorf("document %s appears %d times in the result, want 1", doc.ID, seen[doc.ID])
		}
	}
}

func TestExtractBatchCancellation(t *testing.T) {
	backend := &textKeyedBackend{responses: map[string]Response{}}
	client := NewClient(backend, testLimiter(100), 3, nil)
	extractor := NewExtractor(client, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	docs := []types.Document{
		testDoc("d1", "text one"),
		testDoc("d2", "text two"),
		testDoc("d3", "text three"),
	}

	result, err := extractor.ExtractBatch(ctx, docs)
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if result.Total() != len(docs) {
		t.Errorf("Total() = %d, want %d (cancelled documents still counted)", result.Total(), len(docs))
	}
	if len(result.Failures) != len(docs) {
		t.Errorf("got %d failures, want %d", len(result.Failures), len(docs))
	}
	for _, f := range result.Failures {
		if IsPermanent(f.Err) {
			t.Errorf("document %s: cancellation recorded as permanent: %v", f.Document.ID, f.Err)
		}
	}
	if backend.calls != 0 {
		t.Errorf("backend calls = %d, want 0 (no new calls after cancellation)", backend.calls)
	}
}

func TestBatchResult(t *testing.T) {
	r := BatchResult{
		Successes: []Success{{}, {}, {}},
		Failures:  []Failure{{}},
	}
	if r.Total() != 4 {
		t.Errorf("Total() = %d, want 4", r.Total())
	}
	if !r.HasFailures() {
		t.Error("HasFailures() should return true")
	}
	if (BatchResult{}).HasFailures() {
		t.Error("HasFailures() should return false for an empty result")
	}
}

// --- error classification ---

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"permanent", Permanent(fmt.Errorf("bad request")), true},
		{"transient", Transient(fmt.Errorf("timeout")), false},
		{"wrapped permanent", fmt.Errorf("outer: %w", Permanent(fmt.Errorf("inner"))), true},
		{"unclassified treated as transient", fmt.Errorf("mystery"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyGeminiError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantPermanent bool
	}{
		{"rate limited", genai.APIError{Code: 429}, false},
		{"server error", genai.APIError{Code: 503}, false},
		{"bad request", genai.APIError{Code: 400}, true},
		{"unauthorized", genai.APIError{Code: 401}, true},
		{"transport error", fmt.Errorf("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyGeminiError(tt.err)
			if got := IsPermanent(classified); got != tt.wantPermanent {
				t.Errorf("IsPermanent(classify(%v)) = %v, want %v", tt.err, got, tt.wantPermanent)
			}
		})
	}
}

// --- response cleanup ---

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain object",
			in:   `{"skills": []}`,
			want: `{"skills": []}`,
		},
		{
			name: "fenced with language tag",
			in:   "```json\n{\"skills\": []}\n```",
			want: `{"skills": []}`,
		},
		{
			name: "fenced without language tag",
			in:   "```\n{\"skills\": []}\n```",
			want: `{"skills": []}`,
		},
		{
			name: "prose around the object",
			in:   "Here is the result:\n{\"skills\": []}\nHope that helps!",
			want: `{"skills": []}`,
		},
		{
			name: "trailing comma in array",
			in:   `{"skills": [{"text": "PyTorch"},]}`,
			want: `{"skills": [{"text": "PyTorch"}]}`,
		},
		{
			name: "trailing comma in object",
			in:   `{"skills": [{"text": "PyTorch",}]}`,
			want: `{"skills": [{"text": "PyTorch"}]}`,
		},
		{
			name: "surrounding whitespace",
			in:   "  \n {\"skills\": []} \n ",
			want: `{"skills": []}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanJSONResponse(tt.in); got != tt.want {
				t.Errorf("cleanJSONResponse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRenderPrompt(t *testing.T) {
	prompt, err := renderPrompt("PyTorch 2.0 ships with torch.compile.")
	if err != nil {
		t.Fatalf("renderPrompt: %v", err)
	}
	if !strings.Contains(prompt, "PyTorch 2.0 ships with torch.compile.") {
		t.Error("prompt should contain the document text")
	}
	if !strings.Contains(prompt, `"skills"`) {
		t.Error("prompt should describe the skills response format")
	}
}
