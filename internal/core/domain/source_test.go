package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_IsValid(t *testing.T) {
	for _, s := range AllSources() {
		assert.True(t, s.IsValid(), s)
		assert.NotEqual(t, unknownDescription, s.Description())
	}
	assert.False(t, Source("gmail").IsValid())
	assert.False(t, Source("").IsValid())
	assert.Equal(t, unknownDescription, Source("gmail").Description())
}

func TestDocumentKey(t *testing.T) {
	t.Run("string form", func(t *testing.T) {
		key := DocumentKey{Source: SourceConfluence, DocumentID: "12345"}
		assert.Equal(t, "confluence:12345", key.String())
	})

	t.Run("round trip", func(t *testing.T) {
		key, err := ParseDocumentKey("jira:PROJ-7")
		require.NoError(t, err)
		assert.Equal(t, DocumentKey{Source: SourceJira, DocumentID: "PROJ-7"}, key)
	})

	t.Run("ids may contain colons", func(t *testing.T) {
		key, err := ParseDocumentKey("filesystem:/tmp/a:b.txt")
		require.NoError(t, err)
		assert.Equal(t, "/tmp/a:b.txt", key.DocumentID)
	})

	t.Run("rejects malformed keys", func(t *testing.T) {
		_, err := ParseDocumentKey("jira")
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = ParseDocumentKey("jira:")
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = ParseDocumentKey("gmail:1")
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})
}

func TestChunk_Key(t *testing.T) {
	c := Chunk{Source: SourceGitHub, DocumentID: "o/r#1"}
	assert.Equal(t, "github:o/r#1", c.Key().String())
}
