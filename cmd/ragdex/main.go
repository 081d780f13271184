// Package main provides the ragdex CLI: ingest documents, ask questions,
// and inspect the index.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bull/ragdex/internal/config"
	"github.com/bull/ragdex/internal/embedding"
	"github.com/bull/ragdex/internal/engine"
	"github.com/bull/ragdex/internal/loader"
	"github.com/bull/ragdex/internal/rag"
	"github.com/bull/ragdex/internal/storage"
)

var (
	flagConfig   string
	flagPatterns []string
	flagSections bool
	flagGitHub   string
	flagBasePath string
	flagTopK     int
)

var rootCmd = &cobra.Command{
	Use:   "ragdex",
	Short: "Document indexing and question answering over a local corpus",
	Long: `ragdex chunks documents, embeds them, and indexes the chunks in a
vector store for retrieval-augmented question answering.

Environment variables:
  OPENAI_API_KEY    OpenAI API key for embeddings and generation (required)
  RAGDEX_STORE      Vector store backend: bolt or qdrant (default: bolt)
  RAGDEX_DB_PATH    Bolt database path (default: ./ragdex.db)
  QDRANT_HOST       Qdrant hostname (default: localhost)
  QDRANT_PORT       Qdrant gRPC port (default: 6334)
  GITHUB_TOKEN      GitHub token for higher rate limits (optional)`,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Chunk, embed, and index documents",
	Long: `Reads documents from a local directory (or a GitHub repository with
--github), splits them into overlapping chunks, embeds each chunk, and
upserts the chunks into the vector store.

Chunk identifiers are derived from content, so re-running ingest over the
same documents replaces entries in place instead of duplicating them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of indexed chunks",
	RunE:  runCount,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to YAML config file")

	ingestCmd.Flags().StringSliceVar(&flagPatterns, "pattern", nil, "glob patterns to match (default **/*.md, **/*.txt)")
	ingestCmd.Flags().BoolVar(&flagSections, "sections", false, "split markdown files at H1/H2 boundaries before chunking")
	ingestCmd.Flags().StringVar(&flagGitHub, "github", "", "ingest from a GitHub repository (owner/repo) instead of a directory")
	ingestCmd.Flags().StringVar(&flagBasePath, "path", "", "repository subdirectory to ingest (with --github)")

	askCmd.Flags().IntVarP(&flagTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")

	rootCmd.AddCommand(ingestCmd, askCmd, countCmd)
}

func main() {
	// Load .env if present for local development; absence is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore creates the configured vector store backend.
func openStore(cfg config.Config) (storage.Store, error) {
	switch cfg.Store {
	case config.StoreQdrant:
		return storage.NewQdrantStore(cfg.QdrantHost, cfg.QdrantPort, cfg.Collection, cfg.EmbeddingDimension)
	default:
		return storage.NewBoltStore(cfg.BoltPath, cfg.EmbeddingDimension)
	}
}

// buildEngine assembles the full pipeline from configuration.
func buildEngine(cfg config.Config, store storage.Store, logger *slog.Logger, progress func(done, total int)) (*engine.Engine, error) {
	client, err := embedding.NewClient(cfg.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	embedder := embedding.NewEmbedder(client, embedding.Options{
		BatchSize:         cfg.EmbedBatchSize,
		RequestsPerSecond: cfg.EmbedRateLimit,
		Logger:            logger,
	})
	completer := engine.NewOpenAICompleter(client.Client(), cfg.ChatModel)
	generator := engine.NewGenerator(completer, logger)

	return engine.New(embedder, store, generator, engine.Options{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		BatchSize:    cfg.EmbedBatchSize,
		Concurrency:  cfg.EmbedConcurrency,
		TopK:         cfg.TopK,
		Progress:     progress,
	}, logger), nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	logger := slog.Default()

	// Load documents first so an unreadable source fails before any API call.
	docs, err := loadDocuments(ctx, args, logger)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No documents found.")
		return nil
	}
	fmt.Printf("Loaded %d documents\n", len(docs))

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	var bar *progressbar.ProgressBar
	eng, err := buildEngine(cfg, store, logger, func(done, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "embedding")
		}
		_ = bar.Set(done)
	})
	if err != nil {
		return err
	}

	result, err := eng.Ingest(ctx, docs)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingest complete!")
	fmt.Printf("  Documents: %d\n", result.Documents)
	fmt.Printf("  Chunks:    %d/%d\n", result.ChunksIngested, result.Chunks)
	fmt.Printf("  Duration:  %s\n", result.Duration.Round(time.Millisecond))

	if len(result.FailedBatches) > 0 {
		fmt.Println()
		fmt.Println("Failed batches:")
		for _, failed := range result.FailedBatches {
			fmt.Printf("  - batch %d (chunks %d-%d): %s\n", failed.Batch, failed.Start, failed.End-1, failed.Reason)
		}
		fmt.Println("Re-run ingest to retry; committed chunks will not be duplicated.")
	}

	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

// loadDocuments reads from GitHub when --github is set, otherwise from
// the directory argument (default ".").
func loadDocuments(ctx context.Context, args []string, logger *slog.Logger) ([]rag.Document, error) {
	if flagGitHub != "" {
		owner, repo, ok := strings.Cut(flagGitHub, "/")
		if !ok {
			return nil, fmt.Errorf("--github must be owner/repo, got %q", flagGitHub)
		}
		gh, err := loader.NewGitHubLoader(owner, repo, flagBasePath, logger)
		if err != nil {
			return nil, err
		}
		gh.SplitMarkdown = flagSections
		return gh.Load(ctx)
	}

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	fsLoader := loader.NewFSLoader(dir, flagPatterns, logger)
	fsLoader.SplitMarkdown = flagSections
	return fsLoader.Load()
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagTopK > 0 {
		cfg.TopK = flagTopK
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	eng, err := buildEngine(cfg, store, slog.Default(), nil)
	if err != nil {
		return err
	}

	question := strings.Join(args, " ")
	fmt.Println(eng.Ask(ctx, question))
	return nil
}

func runCount(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	fmt.Println(count)
	return nil
}
