package driven

import (
	"context"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

// Connector fetches documents from a data source.
// Each source type (jira, confluence, github, filesystem) implements this interface.
type Connector interface {
	// Source returns the source this connector reads.
	Source() domain.Source

	// Name returns the configured display name.
	Name() string

	// Validate checks if the connector is properly configured and reachable.
	// For API connectors this makes a lightweight authenticated call.
	// For filesystem it checks the root exists and is readable.
	Validate(ctx context.Context) error

	// Fetch streams every document of the source.
	// The error channel carries per-document failures (wrapped in
	// *domain.FetchError) and does not stop the stream. Both channels are
	// closed when the fetch ends or ctx is cancelled.
	Fetch(ctx context.Context) (<-chan domain.RawDocument, <-chan error)

	// Close releases resources.
	Close() error
}

// Watcher is implemented by connectors that can push change events.
type Watcher interface {
	// Watch emits changes until ctx is cancelled.
	Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error)
}
