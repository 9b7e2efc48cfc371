// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DocumentSource identifies which kind of upstream collector produced a document.
type DocumentSource string

const (
	SourcePaper  DocumentSource = "paper"
	SourceRepo   DocumentSource = "repo"
	SourceThread DocumentSource = "thread"
)

// ValidSource reports whether s is one of the known document sources.
func ValidSource(s DocumentSource) bool {
	switch s {
	case SourcePaper, SourceRepo, SourceThread:
		return true
	}
	return false
}

// Document is one unit of unstructured input text, produced by an upstream
// collector. Immutable once created; the pipeline never mutates it.
type Document struct {
	// ID uniquely identifies the document (e.g. an arXiv ID or repo full name).
	ID string `json:"id" yaml:"id"`

	// Source identifies the collector that produced the document.
	Source DocumentSource `json:"source" yaml:"source"`

	// Text is the raw content to extract skills from (abstract, description,
	// discussion body). A document with empty text fails extraction
	// permanently.
	Text string `json:"text" yaml:"text"`

	// PublishedAt is when the underlying artifact was published upstream.
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`

	// FetchedAt is when the collector retrieved the document.
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}
