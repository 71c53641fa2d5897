// ABOUTME: Deterministic embedder and language model doubles for surface tests
// ABOUTME: NewService wires them into an in-memory core.Service
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/harper/askdocs/internal/core"
	"github.com/harper/askdocs/internal/logging"
	"github.com/harper/askdocs/internal/models"
)

// EmbeddingModel is the model name reported by Embedder
const EmbeddingModel = "fake-embed-v1"

// Embedder embeds text as a 27-dim letter histogram with a constant bias
type Embedder struct {
	mu    sync.Mutex
	Err   error
	calls int
}

// Embed implements core.Embedder
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.Err != nil {
		return nil, e.Err
	}
	return LetterVector(text), nil
}

// EmbedBatch implements core.Embedder
func (e *Embedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = LetterVector(t)
	}
	return out, nil
}

// ModelInfo implements core.Embedder
func (e *Embedder) ModelInfo() string {
	return EmbeddingModel
}

// Calls counts Embed and EmbedBatch invocations
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// LetterVector is the embedding Embedder produces for text
func LetterVector(text string) []float32 {
	vec := make([]float32, 27)
	vec[26] = 1
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		} else if unicode.IsDigit(r) {
			vec[26] += 0.5
		}
	}
	return vec
}

// LLM answers from the first retrieved chunk, or says nothing was found
type LLM struct {
	mu       sync.Mutex
	Err      error
	requests []models.GenerationRequest
}

// Generate implements core.LanguageModel
func (l *LLM) Generate(_ context.Context, req models.GenerationRequest) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, req)
	if l.Err != nil {
		return "", l.Err
	}
	if len(req.Chunks) == 0 {
		return fmt.Sprintf("No documents are indexed (history: %d turns).", len(req.History)), nil
	}
	return "From the documents: " + req.Chunks[0].Text, nil
}

// Requests returns a copy of every request seen so far
func (l *LLM) Requests() []models.GenerationRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.GenerationRequest(nil), l.requests...)
}

// Fixture bundles a Service with the doubles behind it
type Fixture struct {
	Service  *core.Service
	Embedder *Embedder
	LLM      *LLM
}

// NewService builds an in-memory Service over fake models
func NewService(t testing.TB) *Fixture {
	t.Helper()

	logger := logging.Discard()
	chunker, err := core.NewChunker(core.ChunkerConfig{Size: 200, Overlap: 20})
	if err != nil {
		t.Fatalf("NewChunker failed: %v", err)
	}

	f := &Fixture{Embedder: &Embedder{}, LLM: &LLM{}}
	index := core.NewIndexManager(chunker, f.Embedder, nil, logger)
	chain := core.NewRetrievalChain(index, f.LLM, core.ChainConfig{}, logger)
	memory := core.NewConversationMemory(core.MemoryConfig{Logger: logger})
	f.Service = core.NewService(index, chain, memory, logger)
	return f
}
