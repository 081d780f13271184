package embedding

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"

	"github.com/bull/ragdex/internal/faults"
)

// Client wraps the OpenAI client for embedding generation.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates an OpenAI-backed embedding client for the given model.
// It requires OPENAI_API_KEY in the environment and fails fast without it.
func NewClient(model string) (*Client, error) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY environment variable not set", faults.ErrConfiguration)
	}
	if model == "" {
		model = DefaultModel
	}

	// openai-go reads OPENAI_API_KEY from the environment.
	client := openai.NewClient()

	return &Client{client: &client, model: model}, nil
}

// Client returns the underlying OpenAI client for reuse by other
// components (the answer generator shares this connection).
func (c *Client) Client() *openai.Client {
	return c.client
}

// CreateEmbeddings issues a single embeddings call for the given texts and
// returns one vector per input, in input order. The caller owns batching
// and retries; this is the raw API boundary.
func (c *Client) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", faults.ErrPermanent, len(resp.Data), len(texts))
	}

	// The API reports each vector's input index; place by index so the
	// output order matches the input order even if the response doesn't.
	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		i := int(data.Index)
		if i < 0 || i >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", faults.ErrPermanent, i)
		}
		vectors[i] = toFloat32(data.Embedding)
	}
	return vectors, nil
}

// toFloat32 converts the API's float64 vectors to float32 for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
