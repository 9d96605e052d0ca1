package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

// GenerationIndex is one generation's lexical index plus its chunk snapshot.
type GenerationIndex interface {
	LexicalIndex

	// Scan calls fn for every stored chunk in insertion order.
	Scan(ctx context.Context, fn func(domain.EmbeddedChunk) error) error
}

// GenerationStore creates and retires index generations.
// A generation is built in isolation and becomes live only on Commit.
type GenerationStore interface {
	// Create makes an empty generation.
	Create(ctx context.Context, id string) (GenerationIndex, error)

	// Open reopens a committed generation.
	Open(ctx context.Context, id string) (GenerationIndex, error)

	// Current returns the committed generation ID and commit time.
	// It returns domain.ErrNotFound when nothing has been committed.
	Current() (string, time.Time, error)

	// Commit records id as the committed generation.
	Commit(id string) error

	// Remove deletes a generation that is no longer needed.
	Remove(id string) error

	// Prune removes every generation except the committed one, such as
	// those left behind by interrupted runs.
	Prune() error
}
