package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrInvalidConfiguration", ErrInvalidConfiguration},
		{"ErrInvalidArgument", ErrInvalidArgument},
		{"ErrUpstreamFetch", ErrUpstreamFetch},
		{"ErrEmbedding", ErrEmbedding},
		{"ErrIndexCorruption", ErrIndexCorruption},
		{"ErrIngestInProgress", ErrIngestInProgress},
		{"ErrDimensionMismatch", ErrDimensionMismatch},
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestFetchError(t *testing.T) {
	cause := errors.New("connection reset")

	t.Run("document failure", func(t *testing.T) {
		err := NewFetchError(DocumentKey{Source: SourceJira, DocumentID: "ABC-1"}, cause)

		assert.Equal(t, "fetch jira:ABC-1: connection reset", err.Error())
		assert.ErrorIs(t, err, ErrUpstreamFetch)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("listing failure", func(t *testing.T) {
		err := NewFetchError(DocumentKey{Source: SourceConfluence}, cause)

		assert.Equal(t, "fetch confluence: connection reset", err.Error())
	})

	t.Run("survives wrapping", func(t *testing.T) {
		err := fmt.Errorf("ingest: %w", NewFetchError(DocumentKey{Source: SourceGitHub}, cause))

		var fe *FetchError
		assert.ErrorAs(t, err, &fe)
		assert.Equal(t, SourceGitHub, fe.Key.Source)
		assert.ErrorIs(t, err, ErrUpstreamFetch)
	})
}
