// ABOUTME: Retrieval results and the structured language-model request
// ABOUTME: Sources are the retrieved chunks, truncated for transport
package models

// Source is one retrieved chunk returned alongside an answer
type Source struct {
	ChunkID     string            `json:"chunk_id"`
	PageContent string            `json:"page_content"`
	Metadata    map[string]string `json:"metadata"`
	Score       float64           `json:"score"`
}

// RetrievalResult is the answer to a question plus its supporting sources
type RetrievalResult struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// GenerationRequest is everything the language model sees for one question
type GenerationRequest struct {
	History  []Turn  `json:"history"`
	Chunks   []Chunk `json:"chunks"`
	Question string  `json:"question"`
}

// IngestStats summarizes one rebuild or append call
type IngestStats struct {
	Mode        string `json:"mode"`
	Documents   int    `json:"documents"`
	Chunks      int    `json:"chunks"`
	TotalChunks int    `json:"total_chunks"`
}
