// Package flat provides an exhaustive in-memory vector index.
//
// Every query is compared against every stored vector. There is no
// approximate structure, so results are exact at any index size.
package flat

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index stores vectors contiguously with a parallel slice of chunk IDs.
type Index struct {
	mu   sync.RWMutex
	dim  int
	ids  []string
	data []float32 // len(ids) * dim values, row-major
}

// New creates an empty index for vectors of the given dimension.
func New(dimensions int) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: vector dimension must be positive, got %d",
			domain.ErrInvalidConfiguration, dimensions)
	}
	return &Index{dim: dimensions}, nil
}

// Add appends vectors. The batch is rejected as a whole if any vector has
// the wrong dimension.
func (x *Index) Add(_ context.Context, chunkIDs []string, vectors [][]float32) error {
	if len(chunkIDs) != len(vectors) {
		return fmt.Errorf("%w: %d chunk ids for %d vectors", domain.ErrInvalidInput, len(chunkIDs), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != x.dim {
			return fmt.Errorf("%w: vector for chunk %s has %d values, want %d",
				domain.ErrDimensionMismatch, chunkIDs[i], len(v), x.dim)
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.ids = slices.Grow(x.ids, len(chunkIDs))
	x.data = slices.Grow(x.data, len(vectors)*x.dim)
	for i, v := range vectors {
		x.ids = append(x.ids, chunkIDs[i])
		x.data = append(x.data, v...)
	}
	return nil
}

type candidate struct {
	pos  int
	dist float64
}

// Search returns the k closest vectors by Euclidean distance.
// Equal distances keep insertion order.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has %d values, want %d", domain.ErrDimensionMismatch, len(query), x.dim)
	}
	if k <= 0 {
		return []driven.VectorHit{}, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	n := len(x.ids)
	cands := make([]candidate, n)
	for i := 0; i < n; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		cands[i] = candidate{pos: i, dist: squaredL2(query, x.data[i*x.dim:(i+1)*x.dim])}
	}

	slices.SortStableFunc(cands, func(a, b candidate) int {
		return cmp.Compare(a.dist, b.dist)
	})

	k = min(k, n)
	hits := make([]driven.VectorHit, k)
	for i, c := range cands[:k] {
		hits[i] = driven.VectorHit{ChunkID: x.ids[c.pos], Distance: math.Sqrt(c.dist)}
	}
	return hits, nil
}

// ChunkIDAt returns the chunk ID at insertion position i.
func (x *Index) ChunkIDAt(i int) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if i < 0 || i >= len(x.ids) {
		return "", false
	}
	return x.ids[i], true
}

// Len returns the number of stored vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Dimensions returns the vector size.
func (x *Index) Dimensions() int {
	return x.dim
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
