package driven

import (
	"context"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

// LexicalIndex provides BM25-ranked keyword search over chunk text.
// Backed by SQLite FTS5 with the unicode61 tokenizer.
type LexicalIndex interface {
	// Insert adds chunks in one batch. Positions are assigned in slice order
	// after every chunk already stored.
	Insert(ctx context.Context, chunks []domain.EmbeddedChunk) error

	// DeleteDocument removes every chunk of the document.
	// It returns the number of chunks removed.
	DeleteDocument(ctx context.Context, key domain.DocumentKey) (int, error)

	// Search returns up to limit matches, most relevant first.
	// No match is an empty result, not an error.
	Search(ctx context.Context, query string, limit int) ([]LexicalHit, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

// LexicalHit represents a keyword search result.
type LexicalHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Key is the chunk's document.
	Key domain.DocumentKey

	// Snippet is the matched excerpt with terms in brackets.
	Snippet string

	// Score is the negated BM25 rank; higher is more relevant.
	Score float64
}
