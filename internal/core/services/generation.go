package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
	"github.com/custodia-labs/hybridsearch/internal/logger"
)

// VectorIndexFactory creates an empty vector index of the given dimension.
type VectorIndexFactory func(dimensions int) (driven.VectorIndex, error)

// vectorBatchSize bounds how many vectors are buffered while loading a generation.
const vectorBatchSize = 1024

// copyBatchSize bounds how many chunks are buffered while copying a generation.
const copyBatchSize = 500

// generation is one sealed, read-only pair of indexes.
// Position i of the vector index and lookup entry i describe the same chunk.
type generation struct {
	id          string
	committedAt time.Time
	lexical     driven.GenerationIndex
	vectors     driven.VectorIndex // nil when no chunk carries an embedding
	lookup      []domain.Chunk
	byID        map[string]int
	chunks      int

	// mu is held for reading by queries and for writing by retire.
	mu     sync.RWMutex
	closed bool
}

// loadGeneration builds the in-memory vector index from a generation's
// stored chunks. The lexical index is owned by the result on success.
func loadGeneration(
	ctx context.Context, id string, lexical driven.GenerationIndex, newVectors VectorIndexFactory,
) (*generation, error) {
	g := &generation{
		id:      id,
		lexical: lexical,
		byID:    make(map[string]int),
	}

	var ids []string
	var vecs [][]float32
	flush := func() error {
		if len(ids) == 0 {
			return nil
		}
		if err := g.vectors.Add(ctx, ids, vecs); err != nil {
			return err
		}
		ids, vecs = ids[:0], vecs[:0]
		return nil
	}

	err := lexical.Scan(ctx, func(c domain.EmbeddedChunk) error {
		g.chunks++
		if len(c.Embedding) == 0 {
			return nil
		}
		if g.vectors == nil {
			v, err := newVectors(len(c.Embedding))
			if err != nil {
				return fmt.Errorf("create vector index: %w", err)
			}
			g.vectors = v
		}

		g.byID[c.ID] = len(g.lookup)
		g.lookup = append(g.lookup, c.Chunk)
		ids = append(ids, c.ID)
		vecs = append(vecs, c.Embedding)
		if len(ids) >= vectorBatchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return nil, fmt.Errorf("load generation %s: %w", id, err)
	}

	if err := g.verify(); err != nil {
		return nil, err
	}
	return g, nil
}

// verify checks that the vector index and lookup table agree position by position.
func (g *generation) verify() error {
	n := 0
	if g.vectors != nil {
		n = g.vectors.Len()
	}
	if n != len(g.lookup) {
		return fmt.Errorf("%w: generation %s has %d vectors for %d lookup entries",
			domain.ErrIndexCorruption, g.id, n, len(g.lookup))
	}
	for i, c := range g.lookup {
		id, ok := g.vectors.ChunkIDAt(i)
		if !ok || id != c.ID {
			return fmt.Errorf("%w: generation %s position %d holds %q, lookup has %q",
				domain.ErrIndexCorruption, g.id, i, id, c.ID)
		}
	}
	return nil
}

// acquire pins the generation for reading. It returns false once retired.
func (g *generation) acquire() bool {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return false
	}
	return true
}

func (g *generation) release() {
	g.mu.RUnlock()
}

// retire waits for in-flight readers and closes the lexical index.
func (g *generation) retire() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	return g.lexical.Close()
}

func (g *generation) dimensions() int {
	if g.vectors == nil {
		return 0
	}
	return g.vectors.Dimensions()
}

// lexicalHits runs a keyword query.
func (g *generation) lexicalHits(ctx context.Context, query string, limit int) ([]domain.Hit, error) {
	found, err := g.lexical.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]domain.Hit, len(found))
	for i, h := range found {
		hits[i] = domain.Hit{
			SourceID: h.Key.String(),
			Snippet:  h.Snippet,
			Score:    h.Score,
		}
	}
	return hits, nil
}

// vectorHits runs a nearest neighbour query. Scores are negated distances.
func (g *generation) vectorHits(ctx context.Context, query []float32, k int) ([]domain.Hit, error) {
	if g.vectors == nil {
		return []domain.Hit{}, nil
	}

	found, err := g.vectors.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := make([]domain.Hit, 0, len(found))
	for _, h := range found {
		i, ok := g.byID[h.ChunkID]
		if !ok {
			return nil, fmt.Errorf("%w: vector hit %q has no lookup entry", domain.ErrIndexCorruption, h.ChunkID)
		}
		c := g.lookup[i]
		hits = append(hits, domain.Hit{
			SourceID: c.Key().String(),
			Snippet:  c.Text,
			Score:    -h.Distance,
		})
	}
	return hits, nil
}

// Index owns the live generation and publishes new ones.
// Queries read whichever generation is live when they start; a run's
// generation becomes visible only once it is complete and verified.
type Index struct {
	store      driven.GenerationStore
	newVectors VectorIndexFactory
	live       atomic.Pointer[generation]
}

// NewIndex creates an index over a generation store.
func NewIndex(store driven.GenerationStore, newVectors VectorIndexFactory) *Index {
	return &Index{
		store:      store,
		newVectors: newVectors,
	}
}

// Load removes generations left by interrupted runs and opens the
// committed generation, if any.
func (x *Index) Load(ctx context.Context) error {
	if err := x.store.Prune(); err != nil {
		logger.Warn("Failed to prune stale generations: %v", err)
	}

	id, committedAt, err := x.store.Current()
	if errors.Is(err, domain.ErrNotFound) {
		logger.Debug("No committed generation, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read committed generation: %w", err)
	}

	lexical, err := x.store.Open(ctx, id)
	if err != nil {
		return fmt.Errorf("open generation %s: %w", id, err)
	}
	g, err := loadGeneration(ctx, id, lexical, x.newVectors)
	if err != nil {
		lexical.Close() //nolint:errcheck
		return err
	}
	g.committedAt = committedAt

	x.swap(g)
	logger.Info("Loaded generation %s: %d chunks, %d vectors", id, g.chunks, len(g.lookup))
	return nil
}

// acquire returns the live generation pinned for reading, or nil when
// nothing has been committed. Callers must release it.
func (x *Index) acquire() *generation {
	for {
		g := x.live.Load()
		if g == nil {
			return nil
		}
		if g.acquire() {
			return g
		}
		// Retired between Load and acquire; the replacement is already live.
	}
}

// swap makes g live and retires the previous generation.
func (x *Index) swap(g *generation) {
	old := x.live.Swap(g)
	if old == nil {
		return
	}
	if err := old.retire(); err != nil {
		logger.Warn("Failed to close generation %s: %v", old.id, err)
	}
	if err := x.store.Remove(old.id); err != nil {
		logger.Warn("Failed to remove generation %s: %v", old.id, err)
	}
}

// Status describes the live generation.
func (x *Index) Status() domain.IndexStatus {
	g := x.acquire()
	if g == nil {
		return domain.IndexStatus{}
	}
	defer g.release()

	return domain.IndexStatus{
		GenerationID: g.id,
		Chunks:       g.chunks,
		Vectors:      len(g.lookup),
		Dimensions:   g.dimensions(),
		CommittedAt:  g.committedAt,
	}
}

// Close retires the live generation without removing it from the store.
func (x *Index) Close() error {
	g := x.live.Swap(nil)
	if g == nil {
		return nil
	}
	return g.retire()
}

// builder accumulates one run's generation in isolation.
type builder struct {
	id      string
	lexical driven.GenerationIndex
	store   driven.GenerationStore
}

// begin creates a generation for a run. Refresh mode starts from a copy of
// the live generation's chunks.
func (x *Index) begin(ctx context.Context, id string, mode domain.IngestMode) (*builder, error) {
	lexical, err := x.store.Create(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("create generation: %w", err)
	}
	b := &builder{id: id, lexical: lexical, store: x.store}

	if mode != domain.IngestModeRefresh {
		return b, nil
	}

	g := x.acquire()
	if g == nil {
		logger.Debug("Refresh requested with no live generation, starting empty")
		return b, nil
	}
	defer g.release()

	if err := copyChunks(ctx, g.lexical, lexical); err != nil {
		b.abort()
		return nil, fmt.Errorf("copy generation %s: %w", g.id, err)
	}
	logger.Debug("Copied %d chunks from generation %s", g.chunks, g.id)
	return b, nil
}

func copyChunks(ctx context.Context, from driven.GenerationIndex, to driven.LexicalIndex) error {
	batch := make([]domain.EmbeddedChunk, 0, copyBatchSize)
	err := from.Scan(ctx, func(c domain.EmbeddedChunk) error {
		batch = append(batch, c)
		if len(batch) < copyBatchSize {
			return nil
		}
		err := to.Insert(ctx, batch)
		batch = batch[:0]
		return err
	})
	if err != nil {
		return err
	}
	return to.Insert(ctx, batch)
}

// replace swaps a document's chunks within the building generation.
func (b *builder) replace(ctx context.Context, key domain.DocumentKey, chunks []domain.EmbeddedChunk) error {
	removed, err := b.lexical.DeleteDocument(ctx, key)
	if err != nil {
		return err
	}
	if removed > 0 {
		logger.Debug("Replacing %d chunks of %s", removed, key)
	}
	return b.lexical.Insert(ctx, chunks)
}

// remove drops a document from the building generation and reports
// whether it had any chunks.
func (b *builder) remove(ctx context.Context, key domain.DocumentKey) (bool, error) {
	removed, err := b.lexical.DeleteDocument(ctx, key)
	if err != nil {
		return false, err
	}
	if removed > 0 {
		logger.Debug("Removed %d chunks of deleted %s", removed, key)
	}
	return removed > 0, nil
}

// abort discards the building generation.
func (b *builder) abort() {
	if err := b.lexical.Close(); err != nil {
		logger.Warn("Failed to close abandoned generation %s: %v", b.id, err)
	}
	if err := b.store.Remove(b.id); err != nil {
		logger.Warn("Failed to remove abandoned generation %s: %v", b.id, err)
	}
}

// publish seals the builder's generation, commits it and makes it live.
// On failure the builder is aborted and the previous generation stays live.
func (x *Index) publish(ctx context.Context, b *builder) (*generation, error) {
	g, err := loadGeneration(ctx, b.id, b.lexical, x.newVectors)
	if err != nil {
		b.abort()
		return nil, err
	}

	// Cancellation after this point would leave CURRENT and the live pointer disagreeing.
	if err := ctx.Err(); err != nil {
		b.abort()
		return nil, err
	}
	if err := x.store.Commit(b.id); err != nil {
		b.abort()
		return nil, fmt.Errorf("commit generation %s: %w", b.id, err)
	}
	g.committedAt = time.Now().UTC()

	x.swap(g)
	return g, nil
}
