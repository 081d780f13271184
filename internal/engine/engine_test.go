package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/ragdex/internal/faults"
	"github.com/bull/ragdex/internal/rag"
	"github.com/bull/ragdex/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEmbedder maps known texts to fixed vectors and hashes everything
// else, so nearest-neighbor outcomes are controlled by the test.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	vocab map[string][]float32
	fail  string // any text containing this substring fails its batch
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.fail != "" && strings.Contains(t, f.fail) {
			return nil, fmt.Errorf("embedding rejected: %w", faults.ErrPermanent)
		}
		if v, ok := f.vocab[t]; ok {
			out[i] = v
			continue
		}
		out[i] = hashVector(t)
	}
	return out, nil
}

func hashVector(s string) []float32 {
	h := uint32(2166136261)
	for _, b := range []byte(s) {
		h ^= uint32(b)
		h *= 16777619
	}
	return []float32{float32(h%97) / 97, float32(h%89) / 89, float32(h%83) / 83, 1}
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	answer  string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.answer
}

func newTestStore(t *testing.T) *storage.BoltStore {
	t.Helper()
	store, err := storage.NewBoltStore(filepath.Join(t.TempDir(), "test.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAskEmptyCollectionReturnsRefusal(t *testing.T) {
	emb := &fakeEmbedder{}
	gen := &fakeGenerator{answer: "should never appear"}
	eng := New(emb, newTestStore(t), gen, Options{TopK: 3}, testLogger())

	answer := eng.Ask(context.Background(), "anything at all?")

	assert.Equal(t, RefusalAnswer, answer)
	assert.Equal(t, 0, gen.calls, "generator must not run without retrieved context")
	assert.Equal(t, 0, emb.calls, "nothing to search, nothing to embed")
}

func TestAskRetrievesNearestChunk(t *testing.T) {
	const (
		catFact = "Cats are independent mammals that sleep most of the day."
		dogFact = "Dogs are loyal canines that thrive on companionship."
		query   = "Tell me about dogs"
	)
	emb := &fakeEmbedder{vocab: map[string][]float32{
		catFact: {1, 0, 0, 0},
		dogFact: {0, 1, 0, 0},
		query:   {0, 0.9, 0.1, 0},
	}}
	gen := &fakeGenerator{answer: "Dogs are loyal."}
	eng := New(emb, newTestStore(t), gen, Options{TopK: 1}, testLogger())

	docs := []rag.Document{
		{Source: "cats.txt", Content: catFact},
		{Source: "dogs.txt", Content: dogFact},
	}
	result, err := eng.Ingest(context.Background(), docs)
	require.NoError(t, err)
	require.Equal(t, 2, result.ChunksIngested)
	require.Empty(t, result.FailedBatches)

	answer := eng.Ask(context.Background(), query)

	assert.Equal(t, "Dogs are loyal.", answer)
	require.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.prompts[0], dogFact)
	assert.NotContains(t, gen.prompts[0], catFact, "k=1 must carry only the nearest chunk")
	assert.Contains(t, gen.prompts[0], "QUESTION: "+query)
}

func TestIngestIdempotent(t *testing.T) {
	emb := &fakeEmbedder{}
	store := newTestStore(t)
	eng := New(emb, store, &fakeGenerator{}, Options{}, testLogger())

	docs := []rag.Document{
		{Source: "a.txt", Content: "The quick brown fox jumps over the lazy dog."},
		{Source: "b.txt", Content: "Pack my box with five dozen liquor jugs."},
	}

	first, err := eng.Ingest(context.Background(), docs)
	require.NoError(t, err)
	second, err := eng.Ingest(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, first.ChunksIngested, second.ChunksIngested)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ChunksIngested, count, "re-ingesting identical documents must not grow the collection")
}

func TestIngestPartialBatchFailure(t *testing.T) {
	emb := &fakeEmbedder{fail: "POISON"}
	store := newTestStore(t)
	eng := New(emb, store, &fakeGenerator{}, Options{BatchSize: 1}, testLogger())

	docs := []rag.Document{
		{Source: "good1.txt", Content: "First healthy document."},
		{Source: "bad.txt", Content: "POISON document that cannot embed."},
		{Source: "good2.txt", Content: "Second healthy document."},
	}

	result, err := eng.Ingest(context.Background(), docs)
	require.NoError(t, err, "a failed batch is recorded, not fatal")

	assert.Equal(t, 3, result.Chunks)
	assert.Equal(t, 2, result.ChunksIngested)
	require.Len(t, result.FailedBatches, 1)
	assert.Equal(t, 1, result.FailedBatches[0].Batch)
	assert.Equal(t, 1, result.FailedBatches[0].Start)
	assert.Equal(t, 2, result.FailedBatches[0].End)
	assert.Contains(t, result.FailedBatches[0].Reason, "embedding rejected")

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count, "healthy batches commit despite the failed one")
}

func TestIngestEmptyDocuments(t *testing.T) {
	eng := New(&fakeEmbedder{}, newTestStore(t), &fakeGenerator{}, Options{}, testLogger())

	result, err := eng.Ingest(context.Background(), nil)
	require.NoError(t, err)

	assert.Zero(t, result.Chunks)
	assert.Zero(t, result.ChunksIngested)
	assert.Empty(t, result.FailedBatches)
}

func TestIngestReportsProgress(t *testing.T) {
	var (
		mu      sync.Mutex
		settled []int
		total   int
	)
	eng := New(&fakeEmbedder{}, newTestStore(t), &fakeGenerator{}, Options{
		BatchSize:   1,
		Concurrency: 2,
		Progress: func(done, tot int) {
			mu.Lock()
			settled = append(settled, done)
			total = tot
			mu.Unlock()
		},
	}, testLogger())

	docs := []rag.Document{
		{Source: "a.txt", Content: "alpha"},
		{Source: "b.txt", Content: "beta"},
		{Source: "c.txt", Content: "gamma"},
	}
	_, err := eng.Ingest(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, 3, total)
	require.Len(t, settled, 3)
	assert.Equal(t, []int{1, 2, 3}, settled, "settle counter is monotonic under the result mutex")
}

func TestCount(t *testing.T) {
	store := newTestStore(t)
	eng := New(&fakeEmbedder{}, store, &fakeGenerator{}, Options{}, testLogger())

	n, err := eng.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = eng.Ingest(context.Background(), []rag.Document{{Source: "a.txt", Content: "hello world"}})
	require.NoError(t, err)

	n, err = eng.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
