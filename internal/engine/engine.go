// Package engine composes the pipeline: chunking, batched embedding with
// failure isolation, idempotent indexing, retrieval, and grounded answer
// generation.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bull/ragdex/internal/faults"
	"github.com/bull/ragdex/internal/rag"
	"github.com/bull/ragdex/internal/storage"
)

// AnswerGenerator produces an answer for a grounded prompt. *Generator
// implements it; tests substitute a counting fake.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string) string
}

// Options configures an Engine. Zero values take the package defaults.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int // chunks per embedding batch (the failure-isolation unit)
	Concurrency  int // embedding batches in flight at once
	TopK         int // chunks retrieved per question

	// Progress, when set, is called after each embedding batch settles
	// (successfully or not) with the number of settled and total batches.
	Progress func(done, total int)
}

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 3

const (
	defaultBatchSize   = 100
	defaultConcurrency = 4
)

// BatchFailure describes one embedding batch that was skipped after
// exhausting its retry budget. Start and End are chunk offsets into the
// ingest's chunk list.
type BatchFailure struct {
	Batch  int
	Start  int
	End    int
	Reason string
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	Documents      int
	Chunks         int
	ChunksIngested int
	FailedBatches  []BatchFailure
	Duration       time.Duration
}

// Engine exposes the two pipeline operations: Ingest and Ask.
// Queries never mutate the collection, so Ask can run freely between and
// after ingestions.
type Engine struct {
	opts      Options
	embedder  Embedder
	store     storage.Store
	retriever *Retriever
	generator AnswerGenerator
	logger    *slog.Logger

	// writeMu serializes store writes: a single-writer discipline so two
	// batches sharing an id (re-ingestion racing fresh ingestion) cannot
	// interleave partial updates.
	writeMu sync.Mutex
}

// New creates an Engine from its components.
func New(embedder Embedder, store storage.Store, generator AnswerGenerator, opts Options, logger *slog.Logger) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = rag.DefaultChunkSize
	}
	if opts.ChunkOverlap <= 0 {
		opts.ChunkOverlap = rag.DefaultChunkOverlap
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		opts:      opts,
		embedder:  embedder,
		store:     store,
		retriever: NewRetriever(embedder, store, logger),
		generator: generator,
		logger:    logger,
	}
}

// Ingest chunks the documents, embeds the chunks in bounded-concurrency
// batches, and upserts each successfully embedded batch. A batch that
// exhausts its embedding retries is reported in the result and skipped;
// batches already committed stay committed (no rollback), so an aborted
// or partially failed run is safely resumable by re-running Ingest over
// the same documents.
func (e *Engine) Ingest(ctx context.Context, docs []rag.Document) (*IngestResult, error) {
	start := time.Now()

	chunks, err := rag.Split(docs, e.opts.ChunkSize, e.opts.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{Documents: len(docs), Chunks: len(chunks)}
	if len(chunks) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	totalBatches := (len(chunks) + e.opts.BatchSize - 1) / e.opts.BatchSize
	e.logger.Info("starting ingestion",
		"documents", len(docs),
		"chunks", len(chunks),
		"batches", totalBatches,
	)

	var (
		mu   sync.Mutex // guards result and done
		done int
		g    errgroup.Group
	)
	g.SetLimit(e.opts.Concurrency)

	settle := func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		fn()
		done++
		if e.opts.Progress != nil {
			e.opts.Progress(done, totalBatches)
		}
	}

	for offset := 0; offset < len(chunks); offset += e.opts.BatchSize {
		lo, hi := offset, min(offset+e.opts.BatchSize, len(chunks))
		batch := chunks[lo:hi]
		batchNum := lo / e.opts.BatchSize

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Content
			}

			vectors, err := e.embedder.Embed(ctx, texts)
			if err != nil {
				e.logger.Warn("embedding batch failed, skipping",
					"batch", batchNum, "chunks", len(batch), "error", err)
				settle(func() {
					result.FailedBatches = append(result.FailedBatches, BatchFailure{
						Batch: batchNum, Start: lo, End: hi, Reason: err.Error(),
					})
				})
				return nil
			}

			entries := make([]storage.Entry, len(batch))
			for i, c := range batch {
				entries[i] = storage.Entry{
					ID:        c.ID(),
					Embedding: vectors[i],
					Text:      c.Content,
					Source:    c.Source,
					Sequence:  c.Sequence,
				}
			}

			e.writeMu.Lock()
			err = e.store.Upsert(ctx, entries)
			e.writeMu.Unlock()
			if err != nil {
				// Dimension mismatches are fatal misconfiguration, not a
				// batch-local hiccup: stop the run.
				if errors.Is(err, faults.ErrConfiguration) {
					return err
				}
				e.logger.Warn("store upsert failed, skipping batch",
					"batch", batchNum, "chunks", len(batch), "error", err)
				settle(func() {
					result.FailedBatches = append(result.FailedBatches, BatchFailure{
						Batch: batchNum, Start: lo, End: hi, Reason: err.Error(),
					})
				})
				return nil
			}

			settle(func() { result.ChunksIngested += len(entries) })
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	// Batches settle in goroutine order; report failures by position.
	sort.Slice(result.FailedBatches, func(i, j int) bool {
		return result.FailedBatches[i].Batch < result.FailedBatches[j].Batch
	})

	result.Duration = time.Since(start)
	e.logger.Info("ingestion complete",
		"ingested", result.ChunksIngested,
		"failed_batches", len(result.FailedBatches),
		"duration", result.Duration,
	)
	return result, nil
}

// Ask answers a question from the indexed collection. When retrieval
// yields nothing — empty collection, embedding failure, no matches — the
// fixed refusal answer is returned without calling the generator at all:
// no wasted completion call, and no chance of an answer invented from no
// context. Ask never returns an error; generation failures degrade to the
// generator's fallback string.
func (e *Engine) Ask(ctx context.Context, query string) string {
	chunks := e.retriever.Retrieve(ctx, query, e.opts.TopK)
	if len(chunks) == 0 {
		e.logger.Info("no context retrieved, returning refusal", "query", query)
		return RefusalAnswer
	}

	prompt := BuildPrompt(query, chunks)
	return e.generator.Generate(ctx, prompt)
}

// Count returns the number of entries in the collection.
func (e *Engine) Count(ctx context.Context) (int, error) {
	return e.store.Count(ctx)
}
