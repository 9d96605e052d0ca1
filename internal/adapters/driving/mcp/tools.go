package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

// SearchInput is the input schema for the hybrid_search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query"`
	TopK  *int   `json:"top_k,omitempty" jsonschema:"maximum number of hits to return, must be positive (default 5)"`
	Mode  string `json:"mode,omitempty" jsonschema:"hybrid, text or semantic (default hybrid)"`
}

// SearchOutput is the output schema for the hybrid_search tool.
type SearchOutput struct {
	Hits  []domain.Hit `json:"hits"`
	Count int          `json:"count"`
}

// IngestInput is the input schema for the ingest tool.
type IngestInput struct {
	Mode    string   `json:"mode,omitempty" jsonschema:"rebuild or refresh (default rebuild)"`
	Sources []string `json:"sources,omitempty" jsonschema:"restrict the run to these sources: jira, confluence, github, filesystem"`
}

// IngestOutput is the output schema for the ingest tool.
type IngestOutput struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

// StatusInput is the (empty) input schema for the index_status tool.
type StatusInput struct{}

// StatusOutput is the output schema for the index_status tool.
// Times are RFC 3339 strings; empty before the first commit.
type StatusOutput struct {
	GenerationID string `json:"generation_id"`
	Chunks       int    `json:"chunks"`
	Vectors      int    `json:"vectors"`
	Dimensions   int    `json:"dimensions"`
	CommittedAt  string `json:"committed_at"`
	Ingesting    bool   `json:"ingesting"`
	LastRunID    string `json:"last_run_id,omitempty"`
	LastRunError string `json:"last_run_error,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "hybrid_search",
		Description: "Search indexed Jira, Confluence, GitHub and local documents by keywords and meaning",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest",
		Description: "Start a background ingestion run that rebuilds the search index",
	}, s.handleIngest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_status",
		Description: "Describe the live index and the most recent ingestion run",
	}, s.handleStatus)
}

// handleSearch handles the hybrid_search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	topK := s.ports.defaultTopK()
	if input.TopK != nil {
		topK = *input.TopK
	}

	opts := domain.SearchOptions{TopK: topK, Mode: domain.SearchMode(input.Mode)}
	hits, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	if hits == nil {
		hits = []domain.Hit{}
	}

	return nil, SearchOutput{Hits: hits, Count: len(hits)}, nil
}

// handleIngest handles the ingest tool invocation.
func (s *Server) handleIngest(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if s.ports.Ingest == nil {
		return nil, IngestOutput{}, ErrIngestUnavailable
	}

	opts, err := ingestOptions(input)
	if err != nil {
		return nil, IngestOutput{}, err
	}

	runID, err := s.ports.Ingest.Trigger(opts)
	if err != nil {
		return nil, IngestOutput{}, err
	}

	return nil, IngestOutput{Status: "indexing started", RunID: runID}, nil
}

// handleStatus handles the index_status tool invocation.
func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	status, err := s.ports.Search.Status(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}

	output := StatusOutput{
		GenerationID: status.GenerationID,
		Chunks:       status.Chunks,
		Vectors:      status.Vectors,
		Dimensions:   status.Dimensions,
		Ingesting:    status.Ingesting,
	}
	if !status.CommittedAt.IsZero() {
		output.CommittedAt = status.CommittedAt.Format(time.RFC3339)
	}
	if status.LastIngest != nil {
		output.LastRunID = status.LastIngest.RunID
		output.LastRunError = status.LastIngest.Error
	}
	return nil, output, nil
}

// ingestOptions validates tool input into domain options.
func ingestOptions(input IngestInput) (domain.IngestOptions, error) {
	opts := domain.IngestOptions{Mode: domain.IngestModeRebuild}
	if input.Mode != "" {
		opts.Mode = domain.IngestMode(input.Mode)
		if !opts.Mode.IsValid() {
			return opts, fmt.Errorf("%w: ingest mode %q", domain.ErrInvalidArgument, input.Mode)
		}
	}
	for _, name := range input.Sources {
		src := domain.Source(name)
		if !src.IsValid() {
			return opts, fmt.Errorf("%w: unknown source %q", domain.ErrInvalidArgument, name)
		}
		opts.Sources = append(opts.Sources, src)
	}
	return opts, nil
}
