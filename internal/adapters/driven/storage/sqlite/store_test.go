package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

// setupInMemoryStore creates an in-memory generation for testing.
func setupInMemoryStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func chunk(src domain.Source, docID string, seq int, text string, vec ...float32) domain.EmbeddedChunk {
	return domain.EmbeddedChunk{
		Chunk: domain.Chunk{
			ID:            fmt.Sprintf("%s:%s#%d", src, docID, seq),
			Source:        src,
			DocumentID:    docID,
			Text:          text,
			SequenceIndex: seq,
		},
		Embedding: vec,
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen.db")

	store, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())

	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, []domain.EmbeddedChunk{chunk(domain.SourceJira, "A-1", 0, "persisted text", 1, 2)}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "migrations are not re-applied over existing data")
}

func TestStore_InsertAndScan(t *testing.T) {
	ctx := context.Background()
	store := setupInMemoryStore(t)

	in := []domain.EmbeddedChunk{
		chunk(domain.SourceConfluence, "P1", 0, "alpha beta", 0.5, -1.25, 3),
		chunk(domain.SourceConfluence, "P1", 1, "beta gamma", 1, 2, 3),
		chunk(domain.SourceJira, "J-1", 0, "no vector"),
	}
	require.NoError(t, store.Insert(ctx, in))

	var out []domain.EmbeddedChunk
	require.NoError(t, store.Scan(ctx, func(c domain.EmbeddedChunk) error {
		out = append(out, c)
		return nil
	}))

	require.Len(t, out, 3)
	for i := range in {
		assert.Equal(t, in[i].Chunk, out[i].Chunk)
		assert.Equal(t, in[i].Embedding, out[i].Embedding)
		if i > 0 {
			assert.Greater(t, out[i].Position, out[i-1].Position)
		}
	}
	assert.Nil(t, out[2].Embedding)
}

func TestStore_Insert_DuplicateIDFails(t *testing.T) {
	ctx := context.Background()
	store := setupInMemoryStore(t)

	c := chunk(domain.SourceJira, "J-1", 0, "text")
	require.NoError(t, store.Insert(ctx, []domain.EmbeddedChunk{c}))
	assert.Error(t, store.Insert(ctx, []domain.EmbeddedChunk{c}))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_Scan_StopsOnError(t *testing.T) {
	ctx := context.Background()
	store := setupInMemoryStore(t)
	require.NoError(t, store.Insert(ctx, []domain.EmbeddedChunk{
		chunk(domain.SourceJira, "a", 0, "one"),
		chunk(domain.SourceJira, "b", 0, "two"),
	}))

	stop := fmt.Errorf("stop")
	calls := 0
	err := store.Scan(ctx, func(domain.EmbeddedChunk) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestStore_Search(t *testing.T) {
	ctx := context.Background()
	store := setupInMemoryStore(t)
	require.NoError(t, store.Insert(ctx, []domain.EmbeddedChunk{
		chunk(domain.SourceJira, "J-1", 0, "The login page crashes when the password is empty"),
		chunk(domain.SourceConfluence, "P1", 0, "Deployment guide for the payment service"),
		chunk(domain.SourceConfluence, "P2", 0, "Password rotation policy: rotate the password every ninety days. Password managers are required."),
		chunk(domain.SourceGitHub, "o/r#4", 0, "Café menu rendering uses UTF-8"),
	}))

	t.Run("ranks by bm25 descending", func(t *testing.T) {
		hits, err := store.Search(ctx, "password", 10)
		require.NoError(t, err)
		require.Len(t, hits, 2)

		assert.Equal(t, domain.DocumentKey{Source: domain.SourceConfluence, DocumentID: "P2"}, hits[0].Key)
		assert.Equal(t, "J-1", hits[1].Key.DocumentID)
		assert.Greater(t, hits[0].Score, hits[1].Score)
		assert.Greater(t, hits[1].Score, 0.0, "negated bm25 is positive for matches")
		assert.Contains(t, hits[0].Snippet, "[Password]")
	})

	t.Run("case insensitive", func(t *testing.T) {
		hits, err := store.Search(ctx, "DEPLOYMENT", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "P1", hits[0].Key.DocumentID)
	})

	t.Run("unicode aware", func(t *testing.T) {
		hits, err := store.Search(ctx, "café", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, domain.SourceGitHub, hits[0].Key.Source)
	})

	t.Run("any term matches", func(t *testing.T) {
		hits, err := store.Search(ctx, "payment crashes", 10)
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})

	t.Run("respects limit", func(t *testing.T) {
		hits, err := store.Search(ctx, "password", 1)
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("no match is empty", func(t *testing.T) {
		hits, err := store.Search(ctx, "kubernetes", 10)
		require.NoError(t, err)
		assert.NotNil(t, hits)
		assert.Empty(t, hits)
	})

	t.Run("fts syntax in input is literal", func(t *testing.T) {
		for _, q := range []string{`"unbalanced`, "password AND", "NEAR(", "*", "col:password", "-"} {
			_, err := store.Search(ctx, q, 10)
			assert.NoError(t, err, q)
		}
	})

	t.Run("empty query", func(t *testing.T) {
		hits, err := store.Search(ctx, "  ?! ", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestStore_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	store := setupInMemoryStore(t)
	require.NoError(t, store.Insert(ctx, []domain.EmbeddedChunk{
		chunk(domain.SourceConfluence, "P1", 0, "stale window one"),
		chunk(domain.SourceConfluence, "P1", 1, "stale window two"),
		chunk(domain.SourceConfluence, "P2", 0, "fresh content"),
		chunk(domain.SourceJira, "P1", 0, "same id other source"),
	}))

	n, err := store.DeleteDocument(ctx, domain.DocumentKey{Source: domain.SourceConfluence, DocumentID: "P1"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	hits, err := store.Search(ctx, "stale", 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "fts rows go with the chunk rows")

	hits, err = store.Search(ctx, "same", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	n, err = store.DeleteDocument(ctx, domain.DocumentKey{Source: domain.SourceConfluence, DocumentID: "missing"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMatchExpression(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"password reset", `"password" OR "reset"`},
		{"Password password", `"password"`},
		{`login "page"`, `"login" OR "page"`},
		{"foo-bar_baz", `"foo" OR "bar" OR "baz"`},
		{"v2.1", `"v2" OR "1"`},
		{"naïve café", `"naïve" OR "café"`},
		{"", ""},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, matchExpression(tt.in))
		})
	}
}

func TestFloat32Encoding(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4e38}
	blob := float32SliceToBytes(in)
	assert.Len(t, blob, 16)
	assert.Equal(t, []byte{0, 0, 0xc0, 0x3f}, blob[4:8], "little-endian IEEE-754")
	assert.Equal(t, in, bytesToFloat32Slice(blob))

	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}
