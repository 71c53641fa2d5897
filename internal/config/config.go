// ABOUTME: Centralized configuration for the askdocs service
// ABOUTME: Defaults, then an optional YAML file, then environment variables, then validation
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Index backends
const (
	BackendFile = "file"
	BackendS3   = "s3"
)

// Config holds all configuration for askdocs
type Config struct {
	// OpenAI settings
	OpenAIKey         string        `yaml:"openai_api_key"`
	OpenAIBaseURL     string        `yaml:"openai_base_url"`
	ChatModel         string        `yaml:"chat_model"`
	EmbeddingModel    string        `yaml:"embedding_model"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	EmbedBatchSize    int           `yaml:"embed_batch_size"`
	EmbedConcurrency  int           `yaml:"embed_concurrency"`

	// Chunking
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	ChunkStrategy string `yaml:"chunk_strategy"`

	// Retrieval
	TopK             int           `yaml:"top_k"`
	SourceMaxChars   int           `yaml:"source_max_chars"`
	AnswerTimeout    time.Duration `yaml:"answer_timeout"`
	CondenseQuestion bool          `yaml:"condense_question"`

	// Index persistence
	IndexBackend string `yaml:"index_backend"`
	IndexPath    string `yaml:"index_path"`
	S3Bucket     string `yaml:"s3_bucket"`
	S3Key        string `yaml:"s3_key"`
	AWSRegion    string `yaml:"aws_region"`

	// Conversation memory. Empty HistoryDBPath keeps turns in memory;
	// "default" selects the XDG data directory.
	HistoryDBPath string        `yaml:"history_db_path"`
	MaxTurns      int           `yaml:"max_turns"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	MaxSessions   int           `yaml:"max_sessions"`

	// Server and logging
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ChatModel:        "gpt-4o-mini",
		EmbeddingModel:   "text-embedding-3-small",
		Timeout:          30 * time.Second,
		MaxRetries:       3,
		RetryDelay:       2 * time.Second,
		EmbedBatchSize:   100,
		EmbedConcurrency: 4,
		ChunkSize:        1000,
		ChunkOverlap:     200,
		ChunkStrategy:    "window",
		TopK:             4,
		SourceMaxChars:   1000,
		AnswerTimeout:    60 * time.Second,
		IndexBackend:     BackendFile,
		IndexPath:        "askdocs_index.bin",
		S3Key:            "askdocs/index.bin",
		Port:             7860,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile layers the YAML file at path (if non-empty) and then the
// environment over the defaults
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// applyEnv overrides fields whose environment variable is set
func (c *Config) applyEnv() {
	c.OpenAIKey = getEnv("OPENAI_API_KEY", c.OpenAIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.ChatModel = getEnv("OPENAI_MODEL", c.ChatModel)
	c.EmbeddingModel = getEnv("OPENAI_EMBEDDING_MODEL", c.EmbeddingModel)
	c.Timeout = getEnvDuration("OPENAI_TIMEOUT", c.Timeout)
	c.MaxRetries = getEnvInt("OPENAI_MAX_RETRIES", c.MaxRetries)
	c.RetryDelay = getEnvDuration("OPENAI_RETRY_DELAY", c.RetryDelay)
	c.RequestsPerMinute = getEnvInt("OPENAI_REQUESTS_PER_MINUTE", c.RequestsPerMinute)
	c.EmbedBatchSize = getEnvInt("EMBED_BATCH_SIZE", c.EmbedBatchSize)
	c.EmbedConcurrency = getEnvInt("EMBED_CONCURRENCY", c.EmbedConcurrency)

	c.ChunkSize = getEnvInt("CHUNK_SIZE", c.ChunkSize)
	c.ChunkOverlap = getEnvInt("CHUNK_OVERLAP", c.ChunkOverlap)
	c.ChunkStrategy = getEnv("CHUNK_STRATEGY", c.ChunkStrategy)

	c.TopK = getEnvInt("TOP_K", c.TopK)
	c.SourceMaxChars = getEnvInt("SOURCE_MAX_CHARS", c.SourceMaxChars)
	c.AnswerTimeout = getEnvDuration("ANSWER_TIMEOUT", c.AnswerTimeout)
	c.CondenseQuestion = getEnvBool("CONDENSE_QUESTION", c.CondenseQuestion)

	c.IndexBackend = getEnv("INDEX_BACKEND", c.IndexBackend)
	c.IndexPath = getEnv("INDEX_PATH", c.IndexPath)
	c.S3Bucket = getEnv("INDEX_S3_BUCKET", c.S3Bucket)
	c.S3Key = getEnv("INDEX_S3_KEY", c.S3Key)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)

	c.HistoryDBPath = getEnv("HISTORY_DB_PATH", c.HistoryDBPath)
	c.MaxTurns = getEnvInt("MAX_TURNS", c.MaxTurns)
	c.SessionTTL = getEnvDuration("SESSION_TTL", c.SessionTTL)
	c.MaxSessions = getEnvInt("MAX_SESSIONS", c.MaxSessions)

	c.Port = getEnvInt("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be 0 to CHUNK_SIZE-1, got %d", c.ChunkOverlap)
	}
	switch c.ChunkStrategy {
	case "window", "recursive", "tokens":
	default:
		return fmt.Errorf("CHUNK_STRATEGY must be window, recursive or tokens, got %q", c.ChunkStrategy)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	}
	if c.SourceMaxChars <= 0 {
		return fmt.Errorf("SOURCE_MAX_CHARS must be positive, got %d", c.SourceMaxChars)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("OPENAI_REQUESTS_PER_MINUTE must not be negative, got %d", c.RequestsPerMinute)
	}
	if c.MaxTurns < 0 || c.MaxSessions < 0 || c.SessionTTL < 0 {
		return fmt.Errorf("MAX_TURNS, MAX_SESSIONS and SESSION_TTL must not be negative")
	}
	switch c.IndexBackend {
	case BackendFile:
		if c.IndexPath == "" {
			return fmt.Errorf("INDEX_PATH is required for the file backend")
		}
	case BackendS3:
		if c.S3Bucket == "" || c.S3Key == "" {
			return fmt.Errorf("INDEX_S3_BUCKET and INDEX_S3_KEY are required for the s3 backend")
		}
	default:
		return fmt.Errorf("INDEX_BACKEND must be file or s3, got %q", c.IndexBackend)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be 1-65535, got %d", c.Port)
	}
	return nil
}

// RequireAPIKey reports a helpful error when no OpenAI key is configured
func (c *Config) RequireAPIKey() error {
	if c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
