// ABOUTME: IndexManager turns documents into the active vector index
// ABOUTME: Chunk, embed, persist, then swap; ingestion is serialized, reads are lock-free
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/harper/askdocs/internal/models"
	"github.com/harper/askdocs/internal/storage"
)

// Ingestion modes
const (
	ModeAppend  = "append"
	ModeRebuild = "rebuild"
)

// Embedder maps text to fixed-length vectors.
// ModelInfo names the model so indexes built with another one can be refused.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelInfo() string
}

// IndexManager owns the single active VectorIndex
type IndexManager struct {
	chunker  *Chunker
	embedder Embedder
	store    storage.IndexStore
	logger   *slog.Logger

	ingestMu sync.Mutex
	active   atomic.Pointer[storage.VectorIndex]
}

// NewIndexManager creates a manager with an empty active index.
// A nil store keeps the index in memory only.
func NewIndexManager(chunker *Chunker, embedder Embedder, store storage.IndexStore, logger *slog.Logger) *IndexManager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &IndexManager{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		logger:   logger.With("component", "index"),
	}
	m.active.Store(storage.NewVectorIndex(embedder.ModelInfo()))
	return m
}

// Snapshot returns the current index. Callers must treat it as read-only.
func (m *IndexManager) Snapshot() *storage.VectorIndex {
	return m.active.Load()
}

// Embedder returns the embedder used for ingestion, which queries must share
func (m *IndexManager) Embedder() Embedder {
	return m.embedder
}

// LoadOrInit installs the persisted index, or an empty one when none exists.
// Unreadable or foreign indexes are replaced by an empty index and reported
// as a PersistenceError; the manager stays usable either way.
func (m *IndexManager) LoadOrInit(ctx context.Context) error {
	m.ingestMu.Lock()
	defer m.ingestMu.Unlock()

	model := m.embedder.ModelInfo()
	if m.store == nil {
		m.active.Store(storage.NewVectorIndex(model))
		return nil
	}

	idx, err := m.store.LoadIndex(ctx)
	if err != nil {
		m.active.Store(storage.NewVectorIndex(model))
		if errors.Is(err, storage.ErrIndexNotFound) {
			m.logger.Info("no persisted index, starting empty", "location", m.store.Location())
			return nil
		}
		return PersistenceError("load index", err)
	}

	if idx.Len() > 0 && idx.Model() != model {
		m.active.Store(storage.NewVectorIndex(model))
		return PersistenceError("load index",
			fmt.Errorf("index at %s was built with %q but the embedder is %q; re-ingest to rebuild it",
				m.store.Location(), idx.Model(), model))
	}

	m.active.Store(idx)
	m.logger.Info("loaded index", "location", m.store.Location(), "chunks", idx.Len(), "dimension", idx.Dimension())
	return nil
}

// Rebuild replaces the whole index with one built from docs only
func (m *IndexManager) Rebuild(ctx context.Context, docs []models.Document) (stats models.IngestStats, err error) {
	ctx, span := tracer.Start(ctx, "IndexManager.Rebuild")
	defer func() { endSpan(span, err) }()

	m.ingestMu.Lock()
	defer m.ingestMu.Unlock()

	items, used, err := m.embedDocuments(ctx, docs)
	if err != nil {
		return stats, err
	}

	next := storage.NewVectorIndex(m.embedder.ModelInfo())
	if err := next.InsertAll(items); err != nil {
		return stats, IngestionError("rebuild", err)
	}

	if err := m.publish(ctx, next); err != nil {
		return stats, err
	}

	stats = models.IngestStats{Mode: ModeRebuild, Documents: used, Chunks: len(items), TotalChunks: next.Len()}
	span.SetAttributes(attribute.Int("documents", used), attribute.Int("chunks", len(items)))
	m.logger.Info("index rebuilt", "documents", used, "chunks", next.Len())
	return stats, nil
}

// Append embeds docs and merges them into a copy of the active index
func (m *IndexManager) Append(ctx context.Context, docs []models.Document) (stats models.IngestStats, err error) {
	ctx, span := tracer.Start(ctx, "IndexManager.Append")
	defer func() { endSpan(span, err) }()

	m.ingestMu.Lock()
	defer m.ingestMu.Unlock()

	model := m.embedder.ModelInfo()
	current := m.active.Load()
	if current.Len() > 0 && current.Model() != model {
		return stats, IngestionError("append",
			fmt.Errorf("active index was built with %q but the embedder is %q; use rebuild", current.Model(), model))
	}

	items, used, err := m.embedDocuments(ctx, docs)
	if err != nil {
		return stats, err
	}
	if len(items) == 0 {
		return models.IngestStats{Mode: ModeAppend, Documents: used, TotalChunks: current.Len()}, nil
	}

	var next *storage.VectorIndex
	if current.Len() == 0 {
		next = storage.NewVectorIndex(model)
	} else {
		next = current.Clone()
	}
	if err := next.InsertAll(items); err != nil {
		return stats, IngestionError("append", err)
	}

	if err := m.publish(ctx, next); err != nil {
		return stats, err
	}

	stats = models.IngestStats{Mode: ModeAppend, Documents: used, Chunks: len(items), TotalChunks: next.Len()}
	span.SetAttributes(attribute.Int("documents", used), attribute.Int("chunks", len(items)))
	m.logger.Info("index appended", "documents", used, "chunks", len(items), "total", next.Len())
	return stats, nil
}

// Ingest dispatches to Append or Rebuild by mode; empty mode means append
func (m *IndexManager) Ingest(ctx context.Context, docs []models.Document, mode string) (models.IngestStats, error) {
	switch mode {
	case "", ModeAppend:
		return m.Append(ctx, docs)
	case ModeRebuild:
		return m.Rebuild(ctx, docs)
	default:
		return models.IngestStats{}, InvalidRequestError("ingest", fmt.Errorf("unknown mode %q (want %s or %s)", mode, ModeAppend, ModeRebuild))
	}
}

// publish persists next and only then makes it the active index
func (m *IndexManager) publish(ctx context.Context, next *storage.VectorIndex) error {
	if m.store != nil {
		if err := m.store.SaveIndex(ctx, next); err != nil {
			return PersistenceError("save index", err)
		}
	}
	m.active.Store(next)
	return nil
}

// embedDocuments chunks every non-blank document and embeds all chunks in one batch.
// Returns the embedded chunks and how many documents contributed.
func (m *IndexManager) embedDocuments(ctx context.Context, docs []models.Document) ([]models.EmbeddedChunk, int, error) {
	var (
		chunks []models.Chunk
		used   int
	)

	for _, doc := range docs {
		if doc.IsBlank() {
			m.logger.Debug("skipping blank document", "document_id", doc.ID)
			continue
		}
		if doc.ID == "" {
			doc.ID = models.GenerateDocumentID()
		}

		texts, err := m.chunker.Split(doc.Text)
		if err != nil {
			return nil, 0, IngestionError("chunk document "+doc.ID, err)
		}
		for i, text := range texts {
			meta := models.CloneMetadata(doc.Metadata)
			if meta == nil {
				meta = make(map[string]string, 2)
			}
			meta[models.MetaDocumentID] = doc.ID
			meta[models.MetaChunkIndex] = strconv.Itoa(i)

			chunks = append(chunks, models.Chunk{
				ChunkID:  models.GenerateChunkID(),
				Text:     text,
				Metadata: meta,
			})
		}
		used++
	}

	if len(chunks) == 0 {
		return nil, used, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	m.logger.Debug("embedding chunks", "documents", used, "chunks", len(chunks))
	vectors, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, 0, IngestionError("embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		return nil, 0, IngestionError("embed chunks",
			fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	items := make([]models.EmbeddedChunk, len(chunks))
	for i := range chunks {
		items[i] = models.EmbeddedChunk{Chunk: chunks[i], Vector: vectors[i]}
	}
	return items, used, nil
}
