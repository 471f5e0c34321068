package model

import "strings"

// DocumentMetadata carries document provenance. SourceURL is always present
// when the document exists.
type DocumentMetadata struct {
	SourceURL string `json:"sourceURL"`
}

// Document is one extracted page produced by the crawl pipeline. Content may
// be empty; empty-content documents are dropped from final results unless the
// job asked for URLs only.
type Document struct {
	Content  string           `json:"content,omitempty"`
	Metadata DocumentMetadata `json:"metadata"`
}

// HasContent returns true if the document carries non-whitespace content.
func (d Document) HasContent() bool {
	return strings.TrimSpace(d.Content) != ""
}

// URLOnly returns a copy of the document stripped down to its source URL.
func (d Document) URLOnly() Document {
	return Document{Metadata: DocumentMetadata{SourceURL: d.Metadata.SourceURL}}
}
