package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/ragdex/internal/engine"
	"github.com/bull/ragdex/internal/storage"
)

// Server wraps the MCP server with its pipeline dependencies.
type Server struct {
	server *mcp.Server
	store  storage.Store
}

// Config holds server dependencies.
type Config struct {
	Engine     *engine.Engine
	Embedder   engine.Embedder
	Store      storage.Store
	Collection string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "ragdex-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed documents. Retrieves the most relevant chunks and generates a grounded answer, refusing when the index has no usable context.",
	}, makeAskHandler(cfg.Engine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search",
		Description: "Semantically search the indexed chunks. Returns matching chunks with similarity scores and no generation step.",
	}, makeSearchHandler(cfg.Embedder, cfg.Store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_status",
		Description: "Report the current state of the index: chunk count, collection name, and store health.",
	}, makeStatusHandler(cfg.Store, cfg.Collection))

	return &Server{
		server: server,
		store:  cfg.Store,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
