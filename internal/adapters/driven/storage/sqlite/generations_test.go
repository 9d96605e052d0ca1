package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

func TestGenerations_InMemory(t *testing.T) {
	ctx := context.Background()
	g, err := NewGenerations("")
	require.NoError(t, err)
	assert.True(t, g.InMemory())

	_, _, err = g.Current()
	assert.ErrorIs(t, err, domain.ErrNotFound)

	idx, err := g.Create(ctx, "gen-1")
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, g.Commit("gen-1"))
	id, at, err := g.Current()
	require.NoError(t, err)
	assert.Equal(t, "gen-1", id)
	assert.False(t, at.IsZero())

	_, err = g.Open(ctx, "gen-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, g.Remove("gen-1"))
	assert.NoError(t, g.Prune())
}

func TestGenerations_File(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	g, err := NewGenerations(dir)
	require.NoError(t, err)
	assert.False(t, g.InMemory())

	idx, err := g.Create(ctx, "gen-1")
	require.NoError(t, err)
	require.NoError(t, idx.Insert(ctx, []domain.EmbeddedChunk{chunk(domain.SourceJira, "J-1", 0, "hello", 1, 2, 3)}))
	require.NoError(t, idx.Close())
	require.NoError(t, g.Commit("gen-1"))

	t.Run("committed generation survives a new store", func(t *testing.T) {
		g2, err := NewGenerations(dir)
		require.NoError(t, err)

		id, at, err := g2.Current()
		require.NoError(t, err)
		assert.Equal(t, "gen-1", id)
		assert.False(t, at.IsZero())

		idx, err := g2.Open(ctx, id)
		require.NoError(t, err)
		defer idx.Close()

		var got []domain.EmbeddedChunk
		require.NoError(t, idx.Scan(ctx, func(c domain.EmbeddedChunk) error {
			got = append(got, c)
			return nil
		}))
		require.Len(t, got, 1)
		assert.Equal(t, []float32{1, 2, 3}, got[0].Embedding)
	})

	t.Run("create refuses an existing id", func(t *testing.T) {
		_, err := g.Create(ctx, "gen-1")
		assert.Error(t, err)
	})

	t.Run("rejects path-like ids", func(t *testing.T) {
		_, err := g.Create(ctx, "../escape")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("open missing generation", func(t *testing.T) {
		_, err := g.Open(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("prune keeps only the committed generation", func(t *testing.T) {
		orphan, err := g.Create(ctx, "gen-orphan")
		require.NoError(t, err)
		require.NoError(t, orphan.Close())

		require.NoError(t, g.Prune())

		_, err = os.Stat(filepath.Join(dir, generationsDir, "gen-orphan.db"))
		assert.True(t, os.IsNotExist(err))
		_, err = os.Stat(filepath.Join(dir, generationsDir, "gen-1.db"))
		assert.NoError(t, err)
	})

	t.Run("commit switches generations", func(t *testing.T) {
		idx, err := g.Create(ctx, "gen-2")
		require.NoError(t, err)
		require.NoError(t, idx.Close())
		require.NoError(t, g.Commit("gen-2"))
		require.NoError(t, g.Remove("gen-1"))

		id, _, err := g.Current()
		require.NoError(t, err)
		assert.Equal(t, "gen-2", id)
		_, err = g.Open(ctx, "gen-1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
