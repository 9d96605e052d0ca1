package driving

import (
	"context"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

// IngestService rebuilds the indexes from the configured sources.
type IngestService interface {
	// Run ingests in the foreground and swaps in the new generation.
	Run(ctx context.Context, opts domain.IngestOptions) (*domain.IngestReport, error)

	// Trigger starts a background run and returns its ID immediately.
	// It fails with domain.ErrIngestInProgress while a run is active.
	Trigger(opts domain.IngestOptions) (string, error)

	// Running reports whether a run holds the writer slot.
	Running() bool

	// LastReport returns the most recent finished run, or nil.
	LastReport() *domain.IngestReport
}
