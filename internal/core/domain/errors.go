package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrInvalidConfiguration indicates bad chunking or service parameters.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidArgument indicates bad query parameters, e.g. a non-positive top_k.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUpstreamFetch indicates a connector could not fetch one document.
	// Ingestion skips the document and continues.
	ErrUpstreamFetch = errors.New("upstream fetch failed")

	// ErrEmbedding indicates the embedding provider failed.
	// Skip-and-continue during ingestion, fatal for a query.
	ErrEmbedding = errors.New("embedding failed")

	// ErrIndexCorruption indicates the vector index and its lookup table disagree.
	// It must never happen under correct sequencing.
	ErrIndexCorruption = errors.New("index corruption")

	// ErrIngestInProgress indicates an ingestion run already holds the writer slot.
	ErrIngestInProgress = errors.New("ingestion in progress")

	// ErrDimensionMismatch indicates a vector of the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown source, connector or normaliser type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmbeddingUnavailable indicates no embedding provider is configured.
	// Vector and hybrid search are disabled without one.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Connector Errors.

	// ErrConnectorClosed indicates the connector has been closed.
	ErrConnectorClosed = errors.New("connector closed")

	// ErrAuthRequired indicates the connector needs credentials that are not configured.
	ErrAuthRequired = errors.New("authentication required")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// FetchError reports a single document a connector could not deliver.
type FetchError struct {
	// Key is the document, or only its Source when the listing itself failed.
	Key DocumentKey

	// Err is the cause.
	Err error
}

// Error implements error.
func (e *FetchError) Error() string {
	if e.Key.DocumentID == "" {
		return fmt.Sprintf("fetch %s: %v", e.Key.Source, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Key, e.Err)
}

// Unwrap exposes both ErrUpstreamFetch and the cause to errors.Is.
func (e *FetchError) Unwrap() []error {
	return []error{ErrUpstreamFetch, e.Err}
}

// NewFetchError wraps err as a per-document fetch failure.
func NewFetchError(key DocumentKey, err error) error {
	return &FetchError{Key: key, Err: err}
}
