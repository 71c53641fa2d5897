// ABOUTME: OpenAI client for embeddings and grounded answer generation
// ABOUTME: Retries with backoff, bounds each attempt, rate limits, and batches embeddings in parallel
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/harper/askdocs/internal/models"
	"github.com/harper/askdocs/internal/util"
)

const (
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is the default model for embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultTemperature keeps answers close to the retrieved context.
	// go-openai omits a zero temperature, which would fall back to the API default of 1.
	DefaultTemperature = 0.1
)

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey            string
	BaseURL           string
	ChatModel         string
	EmbeddingModel    openai.EmbeddingModel
	Temperature       float32
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerMinute int
	BatchSize         int
	Concurrency       int
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:         apiKey,
		ChatModel:      DefaultChatModel,
		EmbeddingModel: DefaultEmbeddingModel,
		Temperature:    DefaultTemperature,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryDelay:     time.Second * 2,
		BatchSize:      100,
		Concurrency:    4,
	}
}

// OpenAIClient implements core.Embedder, core.LanguageModel and core.QuestionCondenser
type OpenAIClient struct {
	client  *openai.Client
	cfg     ClientConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewOpenAIClient creates a new OpenAI client with the given API key using default configuration
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithConfig(DefaultConfig(apiKey), nil)
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom configuration
func NewOpenAIClientWithConfig(config *ClientConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg := *config
	defaults := DefaultConfig(cfg.APIKey)
	if cfg.ChatModel == "" {
		cfg.ChatModel = defaults.ChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = defaults.EmbeddingModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaults.Temperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}

	c := &OpenAIClient{
		client: openai.NewClientWithConfig(apiConfig),
		cfg:    cfg,
		logger: logger.With("component", "openai"),
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}
	return c, nil
}

// GetClient returns the underlying OpenAI client for direct use
func (c *OpenAIClient) GetClient() *openai.Client {
	return c.client
}

// ModelInfo returns the embedding model name
func (c *OpenAIClient) ModelInfo() string {
	return string(c.cfg.EmbeddingModel)
}

// ChatModel returns the chat completion model name
func (c *OpenAIClient) ChatModel() string {
	return c.cfg.ChatModel
}

// Embed embeds a single text
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embedOnce(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in request-sized batches with bounded parallelism.
// The result is index-aligned with texts.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(texts))
		g.Go(func() error {
			vectors, err := c.embedOnce(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch %d-%d: %w", start, end, err)
			}
			copy(out[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.logger.Debug("embedded batch", "texts", len(texts), "batch_size", c.cfg.BatchSize)
	return out, nil
}

// embedOnce sends one embeddings request and orders the response by index
func (c *OpenAIClient) embedOnce(ctx context.Context, input []string) ([][]float32, error) {
	return withRetry(ctx, c, "create embeddings", func(ctx context.Context) ([][]float32, error) {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: input,
			Model: c.cfg.EmbeddingModel,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) != len(input) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(input), len(resp.Data))
		}

		vectors := make([][]float32, len(input))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(input) || vectors[d.Index] != nil {
				return nil, fmt.Errorf("invalid embedding index %d", d.Index)
			}
			vectors[d.Index] = d.Embedding
		}
		return vectors, nil
	})
}

// Generate answers req.Question from the retrieved chunks and history
func (c *OpenAIClient) Generate(ctx context.Context, req models.GenerationRequest) (string, error) {
	return c.complete(ctx, "generate answer", buildChatMessages(req))
}

// Condense rewrites a follow-up question into a standalone one
func (c *OpenAIClient) Condense(ctx context.Context, history []models.Turn, question string) (string, error) {
	return c.complete(ctx, "condense question", buildCondenseMessages(history, question))
}

func (c *OpenAIClient) complete(ctx context.Context, op string, messages []openai.ChatCompletionMessage) (string, error) {
	return withRetry(ctx, c, op, func(ctx context.Context) (string, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.cfg.ChatModel,
			Messages:    messages,
			Temperature: c.cfg.Temperature,
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("no completion choices returned")
		}
		return resp.Choices[0].Message.Content, nil
	})
}

// withRetry runs fn under the rate limit with a per-attempt timeout,
// retrying transient failures
func withRetry[T any](ctx context.Context, c *OpenAIClient, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	policy := util.Policy{
		MaxRetries: c.cfg.MaxRetries,
		BaseDelay:  c.cfg.RetryDelay,
		Retryable:  isRetryable,
		OnRetry: func(attempt int, err error) {
			c.logger.Warn("openai request failed, retrying", "op", op, "attempt", attempt, "error", err)
		},
	}

	v, err := util.Retry(ctx, policy, func(ctx context.Context, _ int) (T, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return *new(T), fmt.Errorf("rate limiter: %w", err)
			}
		}
		actx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		return fn(actx)
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// isRetryable reports whether err is worth another attempt.
// Client errors other than rate limiting are permanent.
func isRetryable(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusUnprocessableEntity:
		return false
	}
	return true
}
