// ABOUTME: Test doubles for the embedder, language model and index store
// ABOUTME: Deterministic letter-frequency embeddings and scripted answers
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/harper/askdocs/internal/models"
	"github.com/harper/askdocs/internal/storage"
)

// fakeEmbedder embeds text as a 27-dim letter histogram plus a constant bias
type fakeEmbedder struct {
	model string
	err   error

	mu         sync.Mutex
	embedCalls int
	batchCalls int
	lastQuery  string
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{model: "fake-embed-v1"}
}

func letterVector(text string) []float32 {
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

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	f.lastQuery = text
	if f.err != nil {
		return nil, f.err
	}
	return letterVector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = letterVector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) ModelInfo() string {
	return f.model
}

func (f *fakeEmbedder) calls() (embed, batch int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embedCalls, f.batchCalls
}

// fakeLLM records every request and answers via respond
type fakeLLM struct {
	mu       sync.Mutex
	requests []models.GenerationRequest
	respond  func(ctx context.Context, req models.GenerationRequest) (string, error)
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{respond: func(_ context.Context, req models.GenerationRequest) (string, error) {
		for _, c := range req.Chunks {
			if strings.Contains(c.Text, "20 days") {
				return "Employees get 20 days of leave per year.", nil
			}
		}
		return fmt.Sprintf("I cannot find that in the documents (history: %d turns).", len(req.History)), nil
	}}
}

func (f *fakeLLM) Generate(ctx context.Context, req models.GenerationRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()
	return respond(ctx, req)
}

func (f *fakeLLM) lastRequest() models.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeLLM) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// condensingLLM also implements QuestionCondenser
type condensingLLM struct {
	*fakeLLM
	standalone string
	err        error
}

func (c *condensingLLM) Condense(_ context.Context, _ []models.Turn, _ string) (string, error) {
	return c.standalone, c.err
}

// memStore is an IndexStore that keeps the encoded bytes in memory
type memStore struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	saveErr error
}

func (s *memStore) SaveIndex(_ context.Context, idx *storage.VectorIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	data, err := idx.MarshalBinary()
	if err != nil {
		return err
	}
	s.data = data
	s.saves++
	return nil
}

func (s *memStore) LoadIndex(_ context.Context) (*storage.VectorIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, storage.ErrIndexNotFound
	}
	return storage.DecodeVectorIndex(s.data)
}

func (s *memStore) Location() string {
	return "memory"
}

// memTurnLog is a TurnLog backed by a map
type memTurnLog struct {
	mu      sync.Mutex
	turns   map[string][]models.Turn
	deleted []string
	err     error
}

func newMemTurnLog() *memTurnLog {
	return &memTurnLog{turns: map[string][]models.Turn{}}
}

func (l *memTurnLog) Append(sessionID string, turns ...models.Turn) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.turns[sessionID] = append(l.turns[sessionID], turns...)
	return nil
}

func (l *memTurnLog) BySession(sessionID string, limit int) ([]models.Turn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	turns := l.turns[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]models.Turn{}, turns...), nil
}

func (l *memTurnLog) Trim(sessionID string, keep int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if turns := l.turns[sessionID]; len(turns) > keep {
		l.turns[sessionID] = append([]models.Turn{}, turns[len(turns)-keep:]...)
	}
	return nil
}

func (l *memTurnLog) DeleteSession(sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.turns, sessionID)
	l.deleted = append(l.deleted, sessionID)
	return nil
}

func (l *memTurnLog) count(sessionID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns[sessionID])
}

var errFake = errors.New("fake failure")

func newTestChunker() *Chunker {
	c, err := NewChunker(ChunkerConfig{Size: 200, Overlap: 20})
	if err != nil {
		panic(err)
	}
	return c
}
