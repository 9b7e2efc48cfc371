// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"text/template"

	"google.golang.org/genai"
)

// extractionPromptTmpl is the prompt sent to the Gemini API for each
// document. It asks for marketable, learnable skills with standard names so
// that downstream alias matching has stable surface forms to work with.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`You are a skill-trend analysis system. Analyze the following text about ML research or tooling and extract ONLY marketable, learnable skills and technologies.

Focus on skills that:
- Can be learned by ML engineers or researchers
- Are relevant to the job market
- Represent real tools, frameworks, or techniques

For each skill, identify:
- text: the skill name. Use STANDARD names (e.g. "PyTorch" not "PyTorch 2.0"); skip one-off datasets and paper-specific model names.
- category: one of "framework" (tools and libraries), "technique" (methods and algorithms), "application" (problem domains). Omit if unsure.
- confidence: a float between 0.0 and 1.0 indicating how certain you are this is a real, learnable skill.

Respond with a JSON object containing a "skills" array. Do not include any text outside the JSON object.

Example response:
{"skills": [{"text": "PyTorch", "category": "framework", "confidence": 0.95}, {"text": "Knowledge Distillation", "category": "technique", "confidence": 0.9}]}

Text:
{{.Text}}
`))

// GeminiBackend calls the Gemini API to extract skill mentions from document
// text.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGeminiBackend builds a backend authenticated with apiKey.
func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &GeminiBackend{client: client, model: model}, nil
}

// Extract calls the Gemini API with the extraction prompt for one document.
func (g *GeminiBackend) Extract(ctx context.Context, text string) (Response, error) {
	prompt, err := renderPrompt(text)
	if err != nil {
		return Response{}, Permanent(fmt.Errorf("rendering prompt: %w", err))
	}

	content := genai.NewContentFromText(prompt, genai.RoleUser)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, nil)
	if err != nil {
		return Response{}, classifyGeminiError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, Transient(fmt.Errorf("no response candidates from Gemini"))
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}

	var parsed Response
	if err := json.Unmarshal([]byte(cleanJSONResponse(sb.String())), &parsed); err != nil {
		return Response{}, Permanent(fmt.Errorf("parsing Gemini response JSON: %w", err))
	}
	return parsed, nil
}

// classifyGeminiError maps API failures onto the retry taxonomy: 429 and 5xx
// are transient, other 4xx (bad request, auth) are permanent, and transport
// errors get retried.
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return Transient(err)
		case apiErr.Code >= 500:
			return Transient(err)
		case apiErr.Code >= 400:
			return Permanent(err)
		}
	}
	return Transient(err)
}

// renderPrompt executes the extraction prompt template with the document text.
func renderPrompt(text string) (string, error) {
	var buf bytes.Buffer
	if err := extractionPromptTmpl.Execute(&buf, struct{ Text string }{Text: text}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

// cleanJSONResponse strips markdown code fences and trailing commas the model
// sometimes wraps around its JSON, and cuts the response down to the
// outermost object.
func cleanJSONResponse(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		if strings.HasPrefix(lines[0], "```") {
			lines = lines[1:]
		}
		if len(lines) > 0 && strings.HasPrefix(lines[len(lines)-1], "```") {
			lines = lines[:len(lines)-1]
		}
		text = strings.Join(lines, "\n")
		text = strings.TrimSpace(text)
	}
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSpace(text)

	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}

	return trailingCommaRe.ReplaceAllString(text, "$1")
}
