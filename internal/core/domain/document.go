package domain

import "time"

// Document is a normalised plain-text document.
// It is never mutated after normalisation; re-ingestion supersedes it.
type Document struct {
	// Key identifies the document within its source.
	Key DocumentKey

	// URI is the original location (file path, URL, etc).
	URI string

	// Title is the human-readable title.
	Title string

	// Text is the full plain-text body before chunking.
	Text string

	// FetchedAt is when the connector produced the document.
	FetchedAt time.Time
}

// Chunk is an overlapping word window of a Document.
// It is written once per generation and is the smallest retrieval unit.
type Chunk struct {
	// ID is stable for a given (source, document_id, sequence_index).
	ID string

	// Source is the origin of the parent document.
	Source Source

	// DocumentID is the parent document's identifier within Source.
	DocumentID string

	// Text is the window's words joined by single spaces.
	Text string

	// SequenceIndex is the position among the document's chunks.
	SequenceIndex int
}

// Key returns the parent document key.
func (c Chunk) Key() DocumentKey {
	return DocumentKey{Source: c.Source, DocumentID: c.DocumentID}
}

// EmbeddedChunk is a Chunk together with its embedding.
type EmbeddedChunk struct {
	Chunk

	// Embedding is the chunk's vector, D float32 values.
	Embedding []float32

	// Position is the insertion order within a generation.
	// It is assigned by the store and ignored on insert.
	Position int
}
