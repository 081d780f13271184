package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/ragdex/internal/engine"
	"github.com/bull/ragdex/internal/storage"
)

// asker is the slice of the engine the ask tool needs.
type asker interface {
	Ask(ctx context.Context, query string) string
}

// makeAskHandler creates the ask tool handler. The pipeline never errors
// on the answer path; an empty index surfaces as a refusal, not a fault.
func makeAskHandler(eng asker) func(
	context.Context, *mcp.CallToolRequest, AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, AskOutput, error,
	) {
		if input.Question == "" {
			return nil, AskOutput{}, fmt.Errorf("question must not be empty")
		}

		answer := eng.Ask(ctx, input.Question)
		return nil, AskOutput{
			Answer:  answer,
			Refused: answer == engine.RefusalAnswer,
		}, nil
	}
}

// makeSearchHandler creates the search tool handler: embed the query,
// return the nearest chunks with similarity scores, no generation.
func makeSearchHandler(embedder engine.Embedder, store storage.Store) func(
	context.Context, *mcp.CallToolRequest, SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
		*mcp.CallToolResult, SearchOutput, error,
	) {
		if input.Query == "" {
			return nil, SearchOutput{}, fmt.Errorf("query must not be empty")
		}
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = 5
		}

		vectors, err := embedder.Embed(ctx, []string{input.Query})
		if err != nil {
			return nil, SearchOutput{}, fmt.Errorf("embed query: %w", err)
		}

		scored, err := store.Query(ctx, vectors[0], maxResults)
		if err != nil {
			return nil, SearchOutput{}, fmt.Errorf("search failed: %w", err)
		}

		results := make([]SearchResult, 0, len(scored))
		for _, entry := range scored {
			score := 1 - entry.Distance
			if score < input.MinScore {
				continue
			}
			results = append(results, SearchResult{
				Source:   entry.Source,
				Sequence: entry.Sequence,
				Score:    score,
				Text:     entry.Text,
			})
		}

		if len(results) == 0 {
			return nil, SearchOutput{
				Results: []SearchResult{},
				Message: "No matching chunks found. Try broader search terms.",
			}, nil
		}
		return nil, SearchOutput{Results: results}, nil
	}
}

// makeStatusHandler creates the index_status tool handler.
func makeStatusHandler(store storage.Store, collection string) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		count, err := store.Count(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("count failed: %w", err)
		}

		return nil, StatusOutput{
			TotalChunks: count,
			Collection:  collection,
			Healthy:     store.Health(ctx) == nil,
		}, nil
	}
}
