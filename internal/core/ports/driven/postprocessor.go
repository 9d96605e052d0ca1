package driven

import "github.com/custodia-labs/hybridsearch/internal/core/domain"

// Chunker splits a normalised document into retrieval chunks.
type Chunker interface {
	// Name returns the processor name for logging.
	Name() string

	// Process returns the document's chunks in sequence order.
	// Empty text yields no chunks.
	Process(doc *domain.Document) ([]domain.Chunk, error)
}
