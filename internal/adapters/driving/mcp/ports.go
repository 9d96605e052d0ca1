package mcp

import (
	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the MCP server.
type Ports struct {
	// Search answers queries and reports index status.
	Search driving.SearchService

	// Ingest starts background runs. Optional; without it the ingest
	// tool reports an error.
	Ingest driving.IngestService

	// DefaultTopK is used when a search omits top_k.
	// Zero means domain.DefaultTopK.
	DefaultTopK int
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}

func (p *Ports) defaultTopK() int {
	if p.DefaultTopK > 0 {
		return p.DefaultTopK
	}
	return domain.DefaultTopK
}
