package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papertrove/papertrove/internal/auth"
	"github.com/papertrove/papertrove/internal/blob"
	blobfs "github.com/papertrove/papertrove/internal/blob/fs"
	blobmemory "github.com/papertrove/papertrove/internal/blob/memory"
	blobs3 "github.com/papertrove/papertrove/internal/blob/s3"
	"github.com/papertrove/papertrove/internal/category"
	"github.com/papertrove/papertrove/internal/chunker"
	"github.com/papertrove/papertrove/internal/config"
	"github.com/papertrove/papertrove/internal/embeddings"
	openaiembed "github.com/papertrove/papertrove/internal/embeddings/openai"
	"github.com/papertrove/papertrove/internal/extract"
	"github.com/papertrove/papertrove/internal/gateway"
	"github.com/papertrove/papertrove/internal/ingest"
	"github.com/papertrove/papertrove/internal/llm"
	openaillm "github.com/papertrove/papertrove/internal/llm/openai"
	"github.com/papertrove/papertrove/internal/observability"
	"github.com/papertrove/papertrove/internal/processor"
	"github.com/papertrove/papertrove/internal/query"
	"github.com/papertrove/papertrove/internal/reindex"
	"github.com/papertrove/papertrove/internal/search"
	"github.com/papertrove/papertrove/internal/store"
	storememory "github.com/papertrove/papertrove/internal/store/memory"
	"github.com/papertrove/papertrove/internal/store/postgres"
	"github.com/papertrove/papertrove/internal/suggest"
	suggestmemory "github.com/papertrove/papertrove/internal/suggest/memory"
	redissuggest "github.com/papertrove/papertrove/internal/suggest/redis"
)

// defaultDimension applies when no embedding provider is configured.
const defaultDimension = 1536

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the papertrove server",
		Long: `Start the HTTP server with the configured backends.

Graceful shutdown is handled on SIGINT/SIGTERM: the listener drains
in-flight requests and the reindex queue finishes its pending work.`,
		Example: `  # Dev mode: in-memory backends, no auth
  papertrove serve

  # Production config
  papertrove serve --config /etc/papertrove/config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file (empty for dev mode)")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Logging)
	metrics := observability.NewMetrics()
	audit := observability.NewAuditLogger(logger)

	logger.Info(ctx, "starting papertrove",
		"version", version, "commit", commit, "config", configPath)

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	dimension := defaultDimension
	if embedder != nil {
		dimension = embedder.Dimension()
	}

	st, err := buildStore(cfg, dimension)
	if err != nil {
		return err
	}
	defer st.Close()

	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer blobs.Close()

	suggestions, err := buildSuggestIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer suggestions.Close()

	llmClient, err := buildLLMClient(cfg)
	if err != nil {
		return err
	}

	logger.Info(ctx, "backends ready",
		"store", storeName(cfg), "blob", cfg.Blob.Backend,
		"embeddings", cfg.Embeddings.Provider, "dimension", dimension)

	ch := chunker.New(cfg.Chunker)
	extractor := extract.NewExtractor(llmClient, logger, metrics, cfg.Extract)
	categories := category.NewService(st)
	analyzer := query.NewAnalyzer(categories, logger)
	searcher := search.New(st, embedder, analyzer, logger, metrics, cfg.Search)

	registry := processor.NewRegistry()
	registry.Register(processor.NewTextProcessor())
	registry.Register(processor.NewCSVProcessor())
	registry.Register(processor.NewPDFProcessor())
	registry.Register(processor.NewImageProcessor(llmClient, logger, metrics, llmClient != nil))

	ingestor := ingest.New(ingest.Deps{
		Store:       st,
		Blobs:       blobs,
		Registry:    registry,
		Extractor:   extractor,
		Chunker:     ch,
		Embedder:    embedder,
		Suggestions: suggestions,
		Categories:  categories,
		Audit:       audit,
		Logger:      logger,
		Metrics:     metrics,
	}, cfg.Ingest)

	reindexer := reindex.New(reindex.Deps{
		Store:       st,
		Chunker:     ch,
		Embedder:    embedder,
		Extractor:   extractor,
		Suggestions: suggestions,
		Logger:      logger,
		Metrics:     metrics,
	}, cfg.Reindex)
	reindexer.Start()

	authService := auth.NewService(cfg.Auth)
	if !authService.Enabled() {
		logger.Warn(ctx, "auth disabled, all requests run as the default tenant")
	}

	server := gateway.New(gateway.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, gateway.Deps{
		Store:       st,
		Blobs:       blobs,
		Searcher:    searcher,
		Suggestions: suggestions,
		Ingestor:    ingestor,
		Reindexer:   reindexer,
		Categories:  categories,
		Auth:        authService,
		Audit:       audit,
		Logger:      logger,
		Metrics:     metrics,
	})
	if err := server.Start(ctx); err != nil {
		reindexer.Close()
		return fmt.Errorf("start gateway: %w", err)
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-signalCtx.Done()

	logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "gateway shutdown failed", "error", err)
	}
	reindexer.Close()
	logger.Info(ctx, "shutdown complete")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("PAPERTROVE_CONFIG"); env != "" {
			path = env
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func buildEmbedder(cfg *config.Config) (embeddings.Provider, error) {
	switch cfg.Embeddings.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		return openaiembed.New(openaiembed.Config{
			APIKey:  cfg.Embeddings.APIKey,
			BaseURL: cfg.Embeddings.BaseURL,
			Model:   cfg.Embeddings.Model,
		})
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Embeddings.Provider)
	}
}

func buildLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		return openaillm.New(openaillm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func buildStore(cfg *config.Config, dimension int) (store.DocumentStore, error) {
	if cfg.Database.URL == "" {
		return storememory.New(dimension), nil
	}
	return postgres.New(postgres.Config{
		DSN:           cfg.Database.URL,
		Dimension:     dimension,
		RunMigrations: cfg.Database.RunMigrations,
	})
}

func buildBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.Blob.Backend {
	case "memory":
		return blobmemory.New(), nil
	case "fs":
		return blobfs.New(cfg.Blob.Root)
	case "s3":
		return blobs3.New(ctx, cfg.Blob.S3)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
	}
}

func buildSuggestIndex(ctx context.Context, cfg *config.Config) (suggest.Index, error) {
	if cfg.Redis.Addr == "" {
		return suggestmemory.New(), nil
	}
	return redissuggest.New(ctx, cfg.Redis)
}

func storeName(cfg *config.Config) string {
	if cfg.Database.URL == "" {
		return "memory"
	}
	return "postgres"
}
