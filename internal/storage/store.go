// Package storage persists indexed chunks keyed by their content-addressed
// ids and serves similarity queries over their embeddings. Two backends
// implement the same contract: a local bbolt file and a Qdrant collection.
package storage

import "context"

// Store is the index over embedded chunks.
//
// Upsert is idempotent: writing an entry whose id already exists replaces
// it in place, and the final collection content is independent of how
// callers group entries into batches. Query returns the k entries nearest
// the vector by cosine distance, ascending, with ties broken by insertion
// order. A vector whose dimension differs from the collection's fails with
// ErrDimensionMismatch.
type Store interface {
	Upsert(ctx context.Context, entries []Entry) error
	Query(ctx context.Context, vector []float32, k int) ([]ScoredEntry, error)
	Count(ctx context.Context) (int, error)
	Health(ctx context.Context) error
	Close() error
}
