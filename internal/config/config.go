// Package config holds the explicit runtime configuration for the pipeline.
// A Config is constructed once in main and passed into components by
// dependency injection; no package reads configuration at init time.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bull/ragdex/internal/faults"
)

// Store backends.
const (
	StoreBolt   = "bolt"
	StoreQdrant = "qdrant"
)

// Config is the full pipeline configuration. Zero values are filled with
// defaults by Load; Validate rejects combinations the pipeline cannot run
// with before any external call is made.
type Config struct {
	// Chunking
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// Embedding
	EmbeddingModel     string  `yaml:"embedding_model"`
	EmbeddingDimension int     `yaml:"embedding_dimension"`
	EmbedBatchSize     int     `yaml:"embed_batch_size"`
	EmbedConcurrency   int     `yaml:"embed_concurrency"`
	EmbedRateLimit     float64 `yaml:"embed_rate_limit"` // API requests per second

	// Generation
	ChatModel string `yaml:"chat_model"`

	// Retrieval
	TopK int `yaml:"top_k"`

	// Storage
	Store      string `yaml:"store"` // "bolt" or "qdrant"
	Collection string `yaml:"collection"`
	BoltPath   string `yaml:"bolt_path"`
	QdrantHost string `yaml:"qdrant_host"`
	QdrantPort int    `yaml:"qdrant_port"`
}

// Default returns the built-in configuration, matching the deployed
// defaults: 1000/200 chunking, text-embedding-3-small, a local bbolt file.
func Default() Config {
	return Config{
		ChunkSize:          1000,
		ChunkOverlap:       200,
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingDimension: 1536,
		EmbedBatchSize:     100,
		EmbedConcurrency:   4,
		EmbedRateLimit:     5,
		ChatModel:          "gpt-4o",
		TopK:               3,
		Store:              StoreBolt,
		Collection:         "documents",
		BoltPath:           "./ragdex.db",
		QdrantHost:         "localhost",
		QdrantPort:         6334,
	}
}

// Load builds a Config from defaults, an optional YAML file, and
// environment overrides, in that order. path may be empty.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("%w: read config file %s: %v", faults.ErrConfiguration, path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: parse config file %s: %v", faults.ErrConfiguration, path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays the environment variables the deployment sets.
func (c *Config) applyEnv() {
	c.Store = getEnv("RAGDEX_STORE", c.Store)
	c.BoltPath = getEnv("RAGDEX_DB_PATH", c.BoltPath)
	c.Collection = getEnv("RAGDEX_COLLECTION", c.Collection)
	c.QdrantHost = getEnv("QDRANT_HOST", c.QdrantHost)
	c.QdrantPort = getEnvInt("QDRANT_PORT", c.QdrantPort)
	c.EmbeddingModel = getEnv("EMBEDDING_MODEL_NAME", c.EmbeddingModel)
	c.ChatModel = getEnv("LLM_MODEL_NAME", c.ChatModel)
}

// Validate checks the configuration for values the pipeline cannot run
// with. All failures wrap faults.ErrConfiguration.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", faults.ErrConfiguration, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, chunk_size %d)", faults.ErrConfiguration, c.ChunkOverlap, c.ChunkSize)
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("%w: embedding_dimension must be positive, got %d", faults.ErrConfiguration, c.EmbeddingDimension)
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("%w: embed_batch_size must be positive, got %d", faults.ErrConfiguration, c.EmbedBatchSize)
	}
	if c.EmbedConcurrency <= 0 {
		return fmt.Errorf("%w: embed_concurrency must be positive, got %d", faults.ErrConfiguration, c.EmbedConcurrency)
	}
	if c.EmbedRateLimit <= 0 {
		return fmt.Errorf("%w: embed_rate_limit must be positive, got %v", faults.ErrConfiguration, c.EmbedRateLimit)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", faults.ErrConfiguration, c.TopK)
	}
	switch c.Store {
	case StoreBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("%w: bolt_path is required for the bolt store", faults.ErrConfiguration)
		}
	case StoreQdrant:
		if c.QdrantHost == "" || c.QdrantPort <= 0 {
			return fmt.Errorf("%w: qdrant_host and qdrant_port are required for the qdrant store", faults.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown store %q (want %q or %q)", faults.ErrConfiguration, c.Store, StoreBolt, StoreQdrant)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection name is required", faults.ErrConfiguration)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
