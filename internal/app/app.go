// ABOUTME: Composition root: builds the Service and its dependencies from Config
// ABOUTME: Every outer surface (HTTP, MCP, CLI, watcher) receives the App it builds
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/harper/askdocs/internal/config"
	"github.com/harper/askdocs/internal/core"
	"github.com/harper/askdocs/internal/llm"
	"github.com/harper/askdocs/internal/storage"
	"github.com/harper/askdocs/internal/storage/sqlite"
)

// Models are the external capabilities the pipeline invokes
type Models struct {
	Embedder core.Embedder
	LLM      core.LanguageModel
}

// App holds the wired Service and the resources that must be closed with it
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Service *core.Service
	Store   storage.IndexStore

	db *sqlite.DB
}

// New builds an App backed by the OpenAI API
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := llm.NewOpenAIClientWithConfig(&llm.ClientConfig{
		APIKey:            cfg.OpenAIKey,
		BaseURL:           cfg.OpenAIBaseURL,
		ChatModel:         cfg.ChatModel,
		EmbeddingModel:    openai.EmbeddingModel(cfg.EmbeddingModel),
		Temperature:       llm.DefaultTemperature,
		Timeout:           cfg.Timeout,
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay,
		RequestsPerMinute: cfg.RequestsPerMinute,
		BatchSize:         cfg.EmbedBatchSize,
		Concurrency:       cfg.EmbedConcurrency,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}

	return Assemble(ctx, cfg, Models{Embedder: client, LLM: client}, logger)
}

// Assemble wires the pipeline around the given models and loads the persisted index.
// A missing index starts empty; an unreadable one is logged and also starts empty.
func Assemble(ctx context.Context, cfg *config.Config, m Models, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	chunker, err := core.NewChunker(core.ChunkerConfig{
		Size:     cfg.ChunkSize,
		Overlap:  cfg.ChunkOverlap,
		Strategy: core.ChunkStrategy(cfg.ChunkStrategy),
	})
	if err != nil {
		return nil, core.InvalidRequestError("configure chunker", err)
	}

	store, err := NewIndexStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Store: store}

	var turnLog core.TurnLog
	if cfg.HistoryDBPath != "" {
		db, err := sqlite.Open(cfg.HistoryDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		a.db = db
		turnLog = sqlite.NewTurnStore(db)
	}

	index := core.NewIndexManager(chunker, m.Embedder, store, logger)
	if err := index.LoadOrInit(ctx); err != nil {
		logger.Warn("starting with an empty index", "location", store.Location(), "error", err)
	}

	chain := core.NewRetrievalChain(index, m.LLM, core.ChainConfig{
		TopK:             cfg.TopK,
		SourceMaxChars:   cfg.SourceMaxChars,
		AnswerTimeout:    cfg.AnswerTimeout,
		CondenseQuestion: cfg.CondenseQuestion,
	}, logger)

	memory := core.NewConversationMemory(core.MemoryConfig{
		MaxTurns:    cfg.MaxTurns,
		SessionTTL:  cfg.SessionTTL,
		MaxSessions: cfg.MaxSessions,
		Log:         turnLog,
		Logger:      logger,
	})

	a.Service = core.NewService(index, chain, memory, logger)
	return a, nil
}

// NewIndexStore selects the index backend named by cfg
func NewIndexStore(ctx context.Context, cfg *config.Config) (storage.IndexStore, error) {
	switch cfg.IndexBackend {
	case config.BackendS3:
		store, err := storage.NewS3IndexStoreFromEnv(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Key)
		if err != nil {
			return nil, core.PersistenceError("configure s3 index store", err)
		}
		return store, nil
	case config.BackendFile, "":
		return storage.NewFileIndexStore(cfg.IndexPath), nil
	default:
		return nil, core.InvalidRequestError("configure index store",
			fmt.Errorf("unknown index backend %q", cfg.IndexBackend))
	}
}

// Close releases the history database, if one was opened
func (a *App) Close() error {
	var errs []error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close history database: %w", err))
		}
	}
	return errors.Join(errs...)
}
