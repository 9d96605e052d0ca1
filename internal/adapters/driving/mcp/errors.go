// Package mcp provides an MCP (Model Context Protocol) server adapter for hybridsearch.
// It lets AI assistants query the index and start ingestion runs.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// ErrIngestUnavailable is returned by the ingest tool when no ingest service is wired.
var ErrIngestUnavailable = errors.New("mcp: ingestion is not available on this server")
