package driven

import (
	"context"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

// Normaliser transforms raw documents into plain text.
// Each normaliser handles specific MIME types (e.g., HTML, Markdown).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise converts a raw document into a Document with plain text.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error)
}

// NormaliserRegistry selects a normaliser for a raw document.
type NormaliserRegistry interface {
	// Register adds a normaliser.
	Register(n Normaliser)

	// Normalise picks the highest-priority normaliser for the MIME type.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error)
}
