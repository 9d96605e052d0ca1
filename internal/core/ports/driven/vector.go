package driven

import "context"

// VectorIndex provides exhaustive nearest neighbour search by Euclidean distance.
// It has no individual deletion; stale vectors go away with a rebuilt generation.
type VectorIndex interface {
	// Add appends vectors, each tagged with its chunk ID.
	Add(ctx context.Context, chunkIDs []string, vectors [][]float32) error

	// Search returns the k nearest vectors, closest first.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// ChunkIDAt returns the chunk ID stored at insertion position i.
	ChunkIDAt(i int) (string, bool)

	// Len returns the number of stored vectors.
	Len() int

	// Dimensions returns the vector size.
	Dimensions() int
}

// VectorHit represents a nearest neighbour result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Distance is the Euclidean distance to the query (lower = closer).
	Distance float64
}
