// Package main provides the MCP server entry point for the question
// answering pipeline.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bull/ragdex/internal/config"
	"github.com/bull/ragdex/internal/embedding"
	"github.com/bull/ragdex/internal/engine"
	mcpserver "github.com/bull/ragdex/internal/mcp"
	"github.com/bull/ragdex/internal/storage"
)

func main() {
	// Load .env if present for local development; absence is fine.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Cancel on SIGTERM/SIGINT so stdio clients see a clean shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(os.Getenv("RAGDEX_CONFIG"))
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	logger := slog.Default()

	var store storage.Store
	switch cfg.Store {
	case config.StoreQdrant:
		store, err = storage.NewQdrantStore(cfg.QdrantHost, cfg.QdrantPort, cfg.Collection, cfg.EmbeddingDimension)
	default:
		store, err = storage.NewBoltStore(cfg.BoltPath, cfg.EmbeddingDimension)
	}
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	client, err := embedding.NewClient(cfg.EmbeddingModel)
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}
	embedder := embedding.NewEmbedder(client, embedding.Options{
		BatchSize:         cfg.EmbedBatchSize,
		RequestsPerSecond: cfg.EmbedRateLimit,
		Logger:            logger,
	})
	completer := engine.NewOpenAICompleter(client.Client(), cfg.ChatModel)
	generator := engine.NewGenerator(completer, logger)

	eng := engine.New(embedder, store, generator, engine.Options{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		BatchSize:    cfg.EmbedBatchSize,
		Concurrency:  cfg.EmbedConcurrency,
		TopK:         cfg.TopK,
	}, logger)

	server := mcpserver.NewServer(&mcpserver.Config{
		Engine:     eng,
		Embedder:   embedder,
		Store:      store,
		Collection: cfg.Collection,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(store))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if os.Getenv("SERVER_MODE") == "true" {
		// HTTP mode: serve MCP over HTTP for remote clients.
		addr := "0.0.0.0:" + port
		log.Printf("Starting HTTP server on %s (MCP at /mcp, health at /health)", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
		return
	}

	// Stdio mode: MCP over stdin/stdout, health endpoint in the background.
	go func() {
		addr := "0.0.0.0:" + port
		log.Printf("Starting health server on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Health server error: %v", err)
		}
	}()

	log.Println("Starting ragdex MCP server (stdio mode)...")
	if err := server.Run(ctx); err != nil {
		log.Printf("server error: %v", err)
		os.Exit(1)
	}
}
