// ABOUTME: RetrievalChain answers a question from the index plus session history
// ABOUTME: Embed, search top-k, then ask the language model under a timeout
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/harper/askdocs/internal/models"
)

const (
	DefaultTopK           = 4
	DefaultSourceMaxChars = 1000
	DefaultAnswerTimeout  = 60 * time.Second
)

// LanguageModel generates an answer from history, retrieved chunks and the question
type LanguageModel interface {
	Generate(ctx context.Context, req models.GenerationRequest) (string, error)
}

// QuestionCondenser rewrites a follow-up into a standalone question.
// Language models may implement it optionally.
type QuestionCondenser interface {
	Condense(ctx context.Context, history []models.Turn, question string) (string, error)
}

// ChainConfig tunes retrieval and generation. Zero values take the defaults.
type ChainConfig struct {
	TopK             int
	SourceMaxChars   int
	AnswerTimeout    time.Duration
	CondenseQuestion bool
}

func (c ChainConfig) withDefaults() ChainConfig {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.SourceMaxChars <= 0 {
		c.SourceMaxChars = DefaultSourceMaxChars
	}
	if c.AnswerTimeout <= 0 {
		c.AnswerTimeout = DefaultAnswerTimeout
	}
	return c
}

// RetrievalChain is stateless apart from its collaborators; Ask is safe for concurrent use
type RetrievalChain struct {
	index  *IndexManager
	llm    LanguageModel
	cfg    ChainConfig
	logger *slog.Logger
}

// NewRetrievalChain creates a chain that queries the index manager's active snapshot
func NewRetrievalChain(index *IndexManager, llm LanguageModel, cfg ChainConfig, logger *slog.Logger) *RetrievalChain {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalChain{
		index:  index,
		llm:    llm,
		cfg:    cfg.withDefaults(),
		logger: logger.With("component", "chain"),
	}
}

// Config returns the effective configuration
func (c *RetrievalChain) Config() ChainConfig {
	return c.cfg
}

// Ask answers question given the session history. An empty index still
// produces an answer, from history alone, with no sources.
func (c *RetrievalChain) Ask(ctx context.Context, question string, history []models.Turn) (result *models.RetrievalResult, err error) {
	ctx, span := tracer.Start(ctx, "RetrievalChain.Ask")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(question) == "" {
		return nil, InvalidRequestError("ask", errors.New("question cannot be empty"))
	}

	hits, err := c.retrieve(ctx, question, history)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("hits", len(hits)), attribute.Int("history", len(history)))

	req := models.GenerationRequest{
		History:  append([]models.Turn(nil), history...),
		Chunks:   make([]models.Chunk, len(hits)),
		Question: question,
	}
	for i, h := range hits {
		req.Chunks[i] = h.Chunk
	}

	answer, err := c.generate(ctx, req)
	if err != nil {
		return nil, err
	}

	sources := make([]models.Source, len(hits))
	for i, h := range hits {
		sources[i] = models.Source{
			ChunkID:     h.Chunk.ChunkID,
			PageContent: truncateRunes(h.Chunk.Text, c.cfg.SourceMaxChars),
			Metadata:    models.CloneMetadata(h.Chunk.Metadata),
			Score:       h.Score,
		}
	}

	return &models.RetrievalResult{Answer: answer, Sources: sources}, nil
}

// retrieve embeds the (possibly condensed) question and searches one snapshot
func (c *RetrievalChain) retrieve(ctx context.Context, question string, history []models.Turn) ([]models.ScoredChunk, error) {
	snap := c.index.Snapshot()
	if snap.Len() == 0 {
		c.logger.Debug("index is empty, answering from history only")
		return []models.ScoredChunk{}, nil
	}

	embedder := c.index.Embedder()
	if model := embedder.ModelInfo(); snap.Model() != model {
		return nil, RetrievalError("ask",
			fmt.Errorf("index was built with %q but queries embed with %q", snap.Model(), model))
	}

	query := c.condense(ctx, question, history)

	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, RetrievalError("embed question", err)
	}
	hits, err := snap.Search(vec, c.cfg.TopK)
	if err != nil {
		return nil, RetrievalError("search index", err)
	}
	return hits, nil
}

// condense rewrites follow-ups when enabled; any failure falls back to the question as asked
func (c *RetrievalChain) condense(ctx context.Context, question string, history []models.Turn) string {
	if !c.cfg.CondenseQuestion || len(history) == 0 {
		return question
	}
	condenser, ok := c.llm.(QuestionCondenser)
	if !ok {
		return question
	}

	cctx, cancel := context.WithTimeout(ctx, c.cfg.AnswerTimeout)
	defer cancel()

	standalone, err := condenser.Condense(cctx, history, question)
	if err != nil || strings.TrimSpace(standalone) == "" {
		c.logger.Warn("question condensing failed, retrieving with original question", "error", err)
		return question
	}
	c.logger.Debug("condensed question", "original", question, "standalone", standalone)
	return standalone
}

func (c *RetrievalChain) generate(ctx context.Context, req models.GenerationRequest) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, c.cfg.AnswerTimeout)
	defer cancel()

	answer, err := c.llm.Generate(gctx, req)
	if err != nil {
		if errors.Is(gctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", c.cfg.AnswerTimeout, err)
		}
		return "", AnswerGenerationError("generate answer", err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", AnswerGenerationError("generate answer", errors.New("language model returned an empty answer"))
	}
	return answer, nil
}

// truncateRunes cuts s to at most n runes
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
