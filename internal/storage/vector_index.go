// ABOUTME: In-memory vector index with cosine similarity search
// ABOUTME: Snapshots are immutable once published; appends go through Clone
package storage

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/harper/askdocs/internal/models"
)

var (
	// ErrDimensionMismatch is returned when a vector does not match the index dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrIndexNotFound is returned by index stores when nothing has been persisted yet
	ErrIndexNotFound = errors.New("vector index not found")
)

// VectorIndex holds embedded chunks in insertion order.
//
// A VectorIndex is not safe for concurrent mutation. Callers that share one
// across goroutines must treat it as read-only after publishing it, and use
// Clone to derive a modified copy.
type VectorIndex struct {
	model     string
	dimension int
	items     []models.EmbeddedChunk
}

// NewVectorIndex creates an empty index tagged with the embedding model that fills it
func NewVectorIndex(model string) *VectorIndex {
	return &VectorIndex{model: model}
}

// Model returns the embedding model name recorded for this index
func (v *VectorIndex) Model() string {
	return v.model
}

// Dimension returns the vector dimension, or 0 for an empty index
func (v *VectorIndex) Dimension() int {
	return v.dimension
}

// Len returns the number of chunks in the index
func (v *VectorIndex) Len() int {
	return len(v.items)
}

// Items returns the embedded chunks in insertion order.
// The returned slice must not be modified.
func (v *VectorIndex) Items() []models.EmbeddedChunk {
	return v.items
}

// InsertAll appends embedded chunks, enforcing a single vector dimension
func (v *VectorIndex) InsertAll(items []models.EmbeddedChunk) error {
	if len(items) == 0 {
		return nil
	}

	dim := v.dimension
	if dim == 0 {
		dim = len(items[0].Vector)
	}
	if dim == 0 {
		return fmt.Errorf("%w: empty vector for chunk %s", ErrDimensionMismatch, items[0].Chunk.ChunkID)
	}

	// Validate the whole batch before touching the index
	for _, item := range items {
		if len(item.Vector) != dim {
			return fmt.Errorf("%w: expected %d, got %d for chunk %s",
				ErrDimensionMismatch, dim, len(item.Vector), item.Chunk.ChunkID)
		}
	}

	v.dimension = dim
	v.items = append(v.items, items...)
	return nil
}

// Clone returns a copy that can be appended to without affecting v.
// Chunks and vectors are shared since neither is ever mutated in place.
func (v *VectorIndex) Clone() *VectorIndex {
	items := make([]models.EmbeddedChunk, len(v.items))
	copy(items, v.items)
	return &VectorIndex{
		model:     v.model,
		dimension: v.dimension,
		items:     items,
	}
}

// Search returns up to k chunks ordered by descending cosine similarity.
// Ties keep insertion order. An empty index yields an empty result.
func (v *VectorIndex) Search(query []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 || len(v.items) == 0 {
		return []models.ScoredChunk{}, nil
	}
	if len(query) != v.dimension {
		return nil, fmt.Errorf("%w: index has %d, query has %d", ErrDimensionMismatch, v.dimension, len(query))
	}

	results := make([]models.ScoredChunk, len(v.items))
	for i, item := range v.items {
		results[i] = models.ScoredChunk{
			EmbeddedChunk: item,
			Score:         CosineSimilarity(query, item.Vector),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// CosineSimilarity calculates cosine similarity between two vectors.
// Accumulates in float64; zero vectors and mismatched lengths score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dotProduct += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
