package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/hybridsearch/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/hybridsearch/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
)

// skewedVectorIndex reports the wrong chunk ID at position 0.
type skewedVectorIndex struct {
	*flat.Index
}

func (s skewedVectorIndex) ChunkIDAt(i int) (string, bool) {
	if i == 0 {
		return "not-the-first-chunk", true
	}
	return s.Index.ChunkIDAt(i)
}

func embedded(id string, vec ...float32) domain.EmbeddedChunk {
	return domain.EmbeddedChunk{
		Chunk: domain.Chunk{
			ID:         id,
			Source:     domain.SourceJira,
			DocumentID: "X-" + id,
			Text:       "text of " + id,
		},
		Embedding: vec,
	}
}

func newLexical(t *testing.T, chunks ...domain.EmbeddedChunk) driven.GenerationIndex {
	t.Helper()
	store, err := sqlite.Open("")
	require.NoError(t, err)
	require.NoError(t, store.Insert(context.Background(), chunks))
	return store
}

func flatFactory(dims int) (driven.VectorIndex, error) {
	return flat.New(dims)
}

func TestLoadGeneration(t *testing.T) {
	lexical := newLexical(t, embedded("a", 1, 0), embedded("b"), embedded("c", 0, 1))

	g, err := loadGeneration(context.Background(), "gen-1", lexical, flatFactory)
	require.NoError(t, err)
	defer g.retire()

	assert.Equal(t, 3, g.chunks)
	assert.Equal(t, 2, g.vectors.Len())
	assert.Equal(t, 2, g.dimensions())
	require.Len(t, g.lookup, 2)
	assert.Equal(t, "a", g.lookup[0].ID)
	assert.Equal(t, "c", g.lookup[1].ID)
	assert.Equal(t, 1, g.byID["c"])
}

func TestLoadGeneration_WithoutEmbeddings(t *testing.T) {
	g, err := loadGeneration(context.Background(), "gen-1", newLexical(t, embedded("a")), flatFactory)
	require.NoError(t, err)
	defer g.retire()

	assert.Nil(t, g.vectors)
	assert.Zero(t, g.dimensions())

	hits, err := g.vectorHits(context.Background(), []float32{1, 2}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLoadGeneration_DimensionMismatch(t *testing.T) {
	lexical := newLexical(t, embedded("a", 1, 0), embedded("b", 1, 0, 0))
	defer lexical.Close()

	_, err := loadGeneration(context.Background(), "gen-1", lexical, flatFactory)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestLoadGeneration_Corruption(t *testing.T) {
	lexical := newLexical(t, embedded("a", 1, 0), embedded("b", 0, 1))
	defer lexical.Close()

	skewed := func(dims int) (driven.VectorIndex, error) {
		idx, err := flat.New(dims)
		return skewedVectorIndex{idx}, err
	}
	_, err := loadGeneration(context.Background(), "gen-1", lexical, skewed)
	assert.ErrorIs(t, err, domain.ErrIndexCorruption)
}

func TestGeneration_RetireWaitsForReaders(t *testing.T) {
	g, err := loadGeneration(context.Background(), "gen-1", newLexical(t, embedded("a", 1)), flatFactory)
	require.NoError(t, err)

	require.True(t, g.acquire())

	retired := make(chan struct{})
	go func() {
		g.retire() //nolint:errcheck
		close(retired)
	}()

	select {
	case <-retired:
		t.Fatal("retired while a reader held the generation")
	case <-time.After(50 * time.Millisecond):
	}

	// The pinned reader can still query.
	hits, err := g.lexicalHits(context.Background(), "text", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	g.release()
	<-retired
	assert.False(t, g.acquire())
	assert.NoError(t, g.retire(), "retire is idempotent")
}

func TestIndex_SwapRetiresPrevious(t *testing.T) {
	idx := newTestIndex(t, "")
	assert.Nil(t, idx.acquire())
	assert.Equal(t, domain.IndexStatus{}, idx.Status())

	first, err := loadGeneration(context.Background(), "gen-1", newLexical(t, embedded("a", 1)), flatFactory)
	require.NoError(t, err)
	idx.swap(first)

	g := idx.acquire()
	require.NotNil(t, g)
	assert.Equal(t, "gen-1", g.id)
	g.release()

	second, err := loadGeneration(context.Background(), "gen-2", newLexical(t), flatFactory)
	require.NoError(t, err)
	idx.swap(second)

	assert.False(t, first.acquire(), "previous generation is retired")
	assert.Equal(t, "gen-2", idx.Status().GenerationID)
}

func TestIndex_LoadWithoutCommit(t *testing.T) {
	idx := newTestIndex(t, t.TempDir())
	require.NoError(t, idx.Load(context.Background()))
	assert.Nil(t, idx.acquire())
}
