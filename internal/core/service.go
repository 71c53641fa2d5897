// ABOUTME: Service is the facade every outer surface calls
// ABOUTME: Binds per-session memory to the retrieval chain and exposes ingestion
package core

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/harper/askdocs/internal/models"
)

// IndexStats describes the active index
type IndexStats struct {
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
	Chunks    int    `json:"chunks"`
	Sessions  int    `json:"sessions"`
}

// Service wires IndexManager, RetrievalChain and ConversationMemory together
type Service struct {
	index  *IndexManager
	chain  *RetrievalChain
	memory *ConversationMemory
	logger *slog.Logger
}

// NewService creates the facade from already-built components
func NewService(index *IndexManager, chain *RetrievalChain, memory *ConversationMemory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		index:  index,
		chain:  chain,
		memory: memory,
		logger: logger.With("component", "service"),
	}
}

// Ask answers question in the context of sessionID's history and records
// the exchange. Failed asks leave the session untouched.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (*models.RetrievalResult, error) {
	// Invalid requests must not create or refresh a session
	if strings.TrimSpace(question) == "" {
		return nil, InvalidRequestError("ask", errors.New("question cannot be empty"))
	}

	h := s.memory.Get(sessionID)

	var result *models.RetrievalResult
	err := h.Exclusive(func() error {
		history := h.LoadHistory()

		res, err := s.chain.Ask(ctx, question, history)
		if err != nil {
			return err
		}

		if err := h.AppendExchange(question, res.Answer); err != nil {
			// The answer is valid and memory holds the turns; only the log write failed
			s.logger.Warn("failed to persist exchange", "session", h.ID(), "error", err)
		}
		result = res
		return nil
	})
	if err != nil {
		s.logger.Debug("ask failed", "session", h.ID(), "kind", KindOf(err).Code(), "error", err)
		return nil, err
	}

	s.logger.Debug("ask answered", "session", h.ID(), "sources", len(result.Sources))
	return result, nil
}

// Ingest appends docs to the index, or replaces it when mode is rebuild
func (s *Service) Ingest(ctx context.Context, docs []models.Document, mode string) (models.IngestStats, error) {
	return s.index.Ingest(ctx, docs, mode)
}

// History returns a copy of a session's turns. Reading never creates a
// session, so lookups of unknown ids cannot evict live ones.
func (s *Service) History(sessionID string) ([]models.Turn, error) {
	return s.memory.History(sessionID)
}

// ClearSession forgets a session
func (s *Service) ClearSession(sessionID string) error {
	return s.memory.Remove(sessionID)
}

// Sessions lists live session ids
func (s *Service) Sessions() []string {
	return s.memory.Sessions()
}

// Stats reports on the active index and session registry
func (s *Service) Stats() IndexStats {
	snap := s.index.Snapshot()
	return IndexStats{
		Model:     snap.Model(),
		Dimension: snap.Dimension(),
		Chunks:    snap.Len(),
		Sessions:  s.memory.Len(),
	}
}

// Index exposes the index manager for startup loading
func (s *Service) Index() *IndexManager {
	return s.index
}
