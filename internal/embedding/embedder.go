// Package embedding converts text batches into fixed-dimension vectors via
// the OpenAI embeddings API. It owns batching, rate limiting, and the
// retry/backoff policy; everything above it sees ordered vectors or a
// classified failure.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"golang.org/x/time/rate"

	"github.com/bull/ragdex/internal/faults"
)

const (
	// DefaultModel is the embedding model. Its dimension must match the
	// collection's; query and document embeddings always use the same
	// model so both live in one vector space.
	DefaultModel = "text-embedding-3-small"

	// DefaultDimension is the vector size for text-embedding-3-small.
	DefaultDimension = 1536

	// maxAPIBatch is the hard per-call input cap of the embeddings API.
	// Inputs beyond it must be split and re-issued, never truncated.
	maxAPIBatch = 2048

	// DefaultBatchSize balances requests-per-minute against
	// tokens-per-minute pressure; well under maxAPIBatch.
	DefaultBatchSize = 100

	// DefaultRequestsPerSecond is the client-side rate cap applied ahead
	// of every API call. Preferred over unbounded concurrency plus
	// retries as the primary backpressure mechanism.
	DefaultRequestsPerSecond = 5
)

// API is the raw embeddings call. *Client implements it; tests substitute
// a fake to exercise batching and retry without the network.
type API interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Options configures an Embedder. Zero values take the defaults above.
type Options struct {
	BatchSize         int
	RequestsPerSecond float64
	Logger            *slog.Logger

	// NewBackOff and NewRateLimitBackOff produce the per-batch retry
	// schedules for transient and 429 failures respectively. Injectable
	// so tests can retry without wall-clock delays.
	NewBackOff          func() backoff.BackOff
	NewRateLimitBackOff func() backoff.BackOff
}

// Embedder generates embeddings with sub-batch splitting, client-side rate
// limiting, and exponential backoff on transient and rate-limit errors.
type Embedder struct {
	api                 API
	batchSize           int
	limiter             *rate.Limiter
	logger              *slog.Logger
	newBackOff          func() backoff.BackOff
	newRateLimitBackOff func() backoff.BackOff
}

// NewEmbedder creates an Embedder over the given API.
func NewEmbedder(api API, opts Options) *Embedder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchSize > maxAPIBatch {
		opts.BatchSize = maxAPIBatch
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = 30 * time.Second
			return b
		}
	}
	if opts.NewRateLimitBackOff == nil {
		// Rate limits recover on the provider's clock, not ours: start
		// slower and keep trying longer than for generic transients.
		opts.NewRateLimitBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 2 * time.Second
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 2 * time.Minute
			return b
		}
	}
	return &Embedder{
		api:                 api,
		batchSize:           opts.BatchSize,
		limiter:             rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		logger:              opts.Logger,
		newBackOff:          opts.NewBackOff,
		newRateLimitBackOff: opts.NewRateLimitBackOff,
	}
}

// Embed generates one vector per input text, in input order. Oversized
// inputs are split into sub-batches at the configured batch size. A
// sub-batch that exhausts its retry budget fails the call with a
// faults.BatchError naming the failed input range; vectors for earlier
// sub-batches are discarded, so callers wanting partial-failure isolation
// should group their inputs and call Embed per group.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))

		batch, err := e.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, &faults.BatchError{Start: i, End: end, Err: err}
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// embedBatchWithRetry issues one sub-batch with an explicit retry loop.
// Transient and rate-limit failures are retried on their respective
// backoff schedules; permanent failures and exhausted budgets surface
// immediately with their taxonomy sentinel attached.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	transient := e.newBackOff()
	rateLimited := e.newRateLimitBackOff()

	for attempt := 1; ; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, err := e.api.CreateEmbeddings(ctx, texts)
		if err == nil {
			return vectors, nil
		}

		var delay time.Duration
		kind := Classify(err)
		switch {
		case errors.Is(kind, faults.ErrRateLimited):
			delay = rateLimited.NextBackOff()
		case errors.Is(kind, faults.ErrTransient):
			delay = transient.NextBackOff()
		default:
			return nil, fmt.Errorf("%w: %v", faults.ErrPermanent, err)
		}

		if delay == backoff.Stop {
			return nil, fmt.Errorf("%w: retry budget exhausted after %d attempts: %v", faults.ErrPermanent, attempt, err)
		}

		e.logger.Warn("embedding call failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Classify maps an error onto the failure taxonomy. Errors already
// carrying a taxonomy sentinel keep it. For OpenAI API errors: 429 is
// rate-limited, 5xx is transient, any other API rejection is permanent.
// Remaining non-API errors (network, timeout) are treated as transient.
func Classify(err error) error {
	switch {
	case errors.Is(err, faults.ErrRateLimited):
		return faults.ErrRateLimited
	case errors.Is(err, faults.ErrPermanent):
		return faults.ErrPermanent
	case errors.Is(err, faults.ErrTransient):
		return faults.ErrTransient
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return faults.ErrRateLimited
		case apiErr.StatusCode >= 500:
			return faults.ErrTransient
		default:
			return faults.ErrPermanent
		}
	}
	return faults.ErrTransient
}
