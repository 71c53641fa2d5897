// ABOUTME: Chunk is a bounded text segment cut from a source document
// ABOUTME: EmbeddedChunk pairs a chunk with the vector the embedder produced for it
package models

import "fmt"

// Metadata keys stamped on every chunk by the index manager
const (
	MetaDocumentID = "document_id"
	MetaChunkIndex = "chunk_index"
	MetaSource     = "source"
)

// Chunk is an immutable text segment with optional source metadata
type Chunk struct {
	ChunkID  string            `json:"chunk_id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EmbeddedChunk is a chunk together with its embedding vector
type EmbeddedChunk struct {
	Chunk  Chunk     `json:"chunk"`
	Vector []float32 `json:"vector"`
}

// Dimension returns the length of the embedding vector
func (e EmbeddedChunk) Dimension() int {
	return len(e.Vector)
}

// ScoredChunk is a search hit: an embedded chunk and its similarity to the query
type ScoredChunk struct {
	EmbeddedChunk
	Score float64 `json:"score"`
}

// CloneMetadata returns a copy of m that the caller may modify freely
func CloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String implements fmt.Stringer for log output
func (c Chunk) String() string {
	return fmt.Sprintf("Chunk(%s, %d chars)", c.ChunkID, len([]rune(c.Text)))
}
