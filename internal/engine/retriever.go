package engine

import (
	"context"
	"log/slog"

	"github.com/bull/ragdex/internal/rag"
	"github.com/bull/ragdex/internal/storage"
)

// Embedder is the engine's view of the embedding component. The query
// path goes through the same implementation as ingestion (as a batch of
// one) so stored and query vectors always share a model.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever embeds a query and returns the k nearest stored chunks.
type Retriever struct {
	embedder Embedder
	store    storage.Store
	logger   *slog.Logger
}

// NewRetriever creates a Retriever over the given embedder and store.
func NewRetriever(embedder Embedder, store storage.Store, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Retrieve returns the k chunks most similar to the query. An empty
// collection, an embedding failure, and a store failure all yield an
// empty result rather than an error: no context is a normal outcome here,
// and the caller decides what to do with it.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) []rag.Chunk {
	n, err := r.store.Count(ctx)
	if err != nil {
		r.logger.Warn("retrieval skipped: count failed", "error", err)
		return nil
	}
	if n == 0 {
		r.logger.Debug("retrieval skipped: collection is empty")
		return nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) != 1 {
		r.logger.Warn("retrieval skipped: query embedding failed", "error", err)
		return nil
	}

	results, err := r.store.Query(ctx, vectors[0], k)
	if err != nil {
		r.logger.Warn("retrieval skipped: query failed", "error", err)
		return nil
	}

	chunks := make([]rag.Chunk, len(results))
	for i, res := range results {
		chunks[i] = rag.Chunk{
			Source:   res.Source,
			Content:  res.Text,
			Sequence: res.Sequence,
		}
	}
	return chunks
}
