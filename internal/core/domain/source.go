package domain

import (
	"fmt"
	"strings"
)

// Source identifies where a document came from.
// The set is closed; connectors only emit these values.
type Source string

// Known sources.
const (
	// SourceJira is the issue tracker.
	SourceJira Source = "jira"

	// SourceConfluence is the wiki.
	SourceConfluence Source = "confluence"

	// SourceGitHub is GitHub issues.
	SourceGitHub Source = "github"

	// SourceFilesystem is a local directory of text files.
	SourceFilesystem Source = "filesystem"
)

// AllSources lists every known source in display order.
func AllSources() []Source {
	return []Source{SourceJira, SourceConfluence, SourceGitHub, SourceFilesystem}
}

// IsValid returns true if the source is recognised.
func (s Source) IsValid() bool {
	switch s {
	case SourceJira, SourceConfluence, SourceGitHub, SourceFilesystem:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s Source) String() string {
	return string(s)
}

// Description returns a human-readable description of the source.
func (s Source) Description() string {
	switch s {
	case SourceJira:
		return "Jira issues"
	case SourceConfluence:
		return "Confluence pages"
	case SourceGitHub:
		return "GitHub issues"
	case SourceFilesystem:
		return "Local files"
	default:
		return "Unknown"
	}
}

// DocumentKey identifies a document across ingestion runs.
type DocumentKey struct {
	Source     Source
	DocumentID string
}

// String renders the key as "source:document_id", the source_id of a Hit.
func (k DocumentKey) String() string {
	return string(k.Source) + ":" + k.DocumentID
}

// ParseDocumentKey parses the "source:document_id" form.
func ParseDocumentKey(s string) (DocumentKey, error) {
	src, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return DocumentKey{}, fmt.Errorf("%w: document key %q", ErrInvalidInput, s)
	}
	key := DocumentKey{Source: Source(src), DocumentID: id}
	if !key.Source.IsValid() {
		return DocumentKey{}, fmt.Errorf("%w: source %q", ErrUnsupportedType, src)
	}
	return key, nil
}
