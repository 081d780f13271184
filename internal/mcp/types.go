// Package mcp exposes the question-answering pipeline over the Model
// Context Protocol.
package mcp

// AskInput defines the input parameters for the ask tool.
type AskInput struct {
	// Question is the natural-language question to answer.
	Question string `json:"question" jsonschema:"required,description=The question to answer from the indexed documents"`
}

// AskOutput contains the generated answer.
type AskOutput struct {
	// Answer is the grounded answer text.
	Answer string `json:"answer"`
	// Refused indicates the index held no usable context for the question.
	Refused bool `json:"refused"`
}

// SearchInput defines the input parameters for the search tool.
type SearchInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The semantic search query"`
	// MaxResults is the maximum number of chunks to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of chunks to return"`
	// MinScore is the minimum similarity threshold (0-1).
	MinScore float64 `json:"min_score,omitempty" jsonschema:"minimum=0,maximum=1,description=Minimum similarity score threshold (0-1)"`
}

// SearchOutput contains the raw retrieval results.
type SearchOutput struct {
	// Results is the list of matching chunks, nearest first.
	Results []SearchResult `json:"results"`
	// Message provides informational context when there are no results.
	Message string `json:"message,omitempty"`
}

// SearchResult is one retrieved chunk.
type SearchResult struct {
	// Source is the originating document.
	Source string `json:"source"`
	// Sequence is the chunk's position within its document.
	Sequence int `json:"sequence"`
	// Score is the cosine similarity (0-1, higher is closer).
	Score float64 `json:"score"`
	// Text is the chunk content.
	Text string `json:"text"`
}

// StatusInput defines the input parameters for the index_status tool.
// The tool takes no parameters.
type StatusInput struct{}

// StatusOutput describes the current state of the index.
type StatusOutput struct {
	// TotalChunks is the number of indexed chunks.
	TotalChunks int `json:"total_chunks"`
	// Collection is the collection name.
	Collection string `json:"collection"`
	// Healthy reports whether the store answered its health probe.
	Healthy bool `json:"healthy"`
}
