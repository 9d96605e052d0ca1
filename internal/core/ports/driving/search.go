package driving

import (
	"context"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

// SearchService provides search capabilities to external actors.
type SearchService interface {
	// Search runs a query against the live generation.
	// An empty or not yet built index yields no hits and no error.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Hit, error)

	// Status describes the live generation.
	Status(ctx context.Context) (*domain.IndexStatus, error)
}
