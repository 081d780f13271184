package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/ragdex/internal/faults"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }},
		{"overlap equals size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }},
		{"zero dimension", func(c *Config) { c.EmbeddingDimension = 0 }},
		{"zero batch size", func(c *Config) { c.EmbedBatchSize = 0 }},
		{"zero concurrency", func(c *Config) { c.EmbedConcurrency = 0 }},
		{"zero rate limit", func(c *Config) { c.EmbedRateLimit = 0 }},
		{"zero top k", func(c *Config) { c.TopK = 0 }},
		{"unknown store", func(c *Config) { c.Store = "redis" }},
		{"bolt without path", func(c *Config) { c.BoltPath = "" }},
		{"empty collection", func(c *Config) { c.Collection = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, faults.ErrConfiguration)
		})
	}
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragdex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: 500\nchunk_overlap: 50\ntop_k: 5\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 5, cfg.TopK)
	// Untouched fields keep their defaults.
	assert.Equal(t, Default().EmbeddingModel, cfg.EmbeddingModel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, faults.ErrConfiguration)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("QDRANT_PORT", "6335")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "qdrant.internal", cfg.QdrantHost)
	assert.Equal(t, 6335, cfg.QdrantPort)
}

func TestLoadInvalidYAMLValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragdex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: 100\nchunk_overlap: 100\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, faults.ErrConfiguration)
}
