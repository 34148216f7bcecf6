package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kestrel-cloud/ragdex/internal/config"
	"github.com/kestrel-cloud/ragdex/internal/db"
	dbRedis "github.com/kestrel-cloud/ragdex/internal/db/redis"
	"github.com/kestrel-cloud/ragdex/internal/domain"
	logpkg "github.com/kestrel-cloud/ragdex/internal/logger"
	"github.com/kestrel-cloud/ragdex/internal/metrics"
	embeddingrepo "github.com/kestrel-cloud/ragdex/internal/repository/embedding"
	sourcerepo "github.com/kestrel-cloud/ragdex/internal/repository/source"
	chiTransport "github.com/kestrel-cloud/ragdex/internal/transport/chi"
	openaiTransport "github.com/kestrel-cloud/ragdex/internal/transport/openai"
	embeddinguc "github.com/kestrel-cloud/ragdex/internal/usecase/embedding"
	healthuc "github.com/kestrel-cloud/ragdex/internal/usecase/health"
	raguc "github.com/kestrel-cloud/ragdex/internal/usecase/rag"
	"github.com/kestrel-cloud/ragdex/internal/usecase/retrieval"
	"github.com/kestrel-cloud/ragdex/internal/usecase/route"
	searchuc "github.com/kestrel-cloud/ragdex/internal/usecase/search"
	"github.com/kestrel-cloud/ragdex/internal/version"
)

func main() {
	// .env is optional; real deployments pass env vars directly.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register domain metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()
	metrics.RegisterGenerationMetrics()

	if err := ensureIndexes(ctx, store, cfg, logger); err != nil {
		logger.Fatal("Failed to bootstrap indexes", zap.Error(err))
	}

	// Repositories
	embRepo := embeddingrepo.New(store, cfg.Storage.KeyPrefix, cfg.Retrieval.MaxScanKeys)
	srcRepo := sourcerepo.New(store, cfg.Storage.KeyPrefix)

	// Embedder chains: transport -> lazy init -> instrumentation. The bases
	// are plain HTTP clients, so constructing them eagerly is free; the lazy
	// wrapper defers the first endpoint round-trip to the first embed call.
	textBase := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.Text.APIKey,
		BaseURL:    cfg.Embedding.Text.BaseURL,
		Model:      cfg.Embedding.Text.Model,
		Dimensions: cfg.Embedding.Text.Dimensions,
		Provider:   "text",
		Logger:     logger,
	})
	clipBase := openaiTransport.NewCLIPEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.CLIP.APIKey,
		BaseURL:    cfg.Embedding.CLIP.BaseURL,
		Model:      cfg.Embedding.CLIP.Model,
		Dimensions: cfg.Embedding.CLIP.Dimensions,
		Provider:   "clip",
		Logger:     logger,
	})

	textEmbedder := embeddinguc.NewInstrumented(
		embeddinguc.NewLazy(func(ctx context.Context) (domain.CrossModalEmbedder, error) {
			if err := textBase.HealthCheck(ctx); err != nil {
				return nil, err
			}
			return embeddinguc.TextOnly{TextEmbedder: textBase}, nil
		}),
		"text", logger,
	)
	clipEmbedder := embeddinguc.NewInstrumented(
		embeddinguc.NewLazy(func(ctx context.Context) (domain.CrossModalEmbedder, error) {
			if err := clipBase.HealthCheck(ctx); err != nil {
				return nil, err
			}
			return clipBase, nil
		}),
		"clip", logger,
	)
	logger.Info("Embedders created",
		zap.String("text_model", cfg.Embedding.Text.Model),
		zap.String("clip_model", cfg.Embedding.CLIP.Model),
	)

	planner := route.New(textEmbedder, clipEmbedder,
		cfg.Retrieval.TextIndexes, cfg.Retrieval.ImageIndexes)

	searchSvc := searchuc.New(searchuc.Config{
		Planner:    planner,
		Retriever:  retrieval.New(embRepo, logger),
		Embeddings: embRepo,
		Resolver:   srcRepo,
		Images: openaiTransport.NewImageFetcher(
			time.Duration(cfg.Embedding.FetchTimeoutSec)*time.Second,
			cfg.Embedding.MaxImageBytes,
		),
		Weights: domain.RankWeights{
			Vector:  cfg.Retrieval.VectorWeight,
			Lexical: cfg.Retrieval.LexicalWeight,
		},
		ResolveConcurrency: cfg.Retrieval.ResolveConcurrency,
		Logger:             logger,
	})

	ragSvc := raguc.New(raguc.Config{
		Searcher: searchSvc,
		Generator: openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
			APIKey:  cfg.Generation.APIKey,
			BaseURL: cfg.Generation.BaseURL,
			Model:   cfg.Generation.Model,
			Logger:  logger,
		}),
		Timeout:     time.Duration(cfg.Generation.TimeoutSec) * time.Second,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
		Logger:      logger,
	})

	healthSvc := healthuc.New(store, map[string]healthuc.Checker{
		"text_embedding": textBase,
		"clip_embedding": clipBase,
	})

	server := chiTransport.NewServer(searchSvc, ragSvc, healthSvc, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// ensureIndexes creates the primary per-modality ANN indexes if missing.
// Secondary entries in the index lists are operator-managed migration
// targets and are not bootstrapped here.
func ensureIndexes(ctx context.Context, store db.Store, cfg config.Config, logger *zap.Logger) error {
	type target struct {
		name   string
		dim    int
		prefix string
	}

	targets := []target{
		{cfg.Retrieval.TextIndexes[0], cfg.Embedding.Text.Dimensions, cfg.Storage.KeyPrefix + "emb:text:"},
		{cfg.Retrieval.ImageIndexes[0], cfg.Embedding.CLIP.Dimensions, cfg.Storage.KeyPrefix + "emb:image:"},
	}

	for _, t := range targets {
		def := db.EmbeddingIndex(t.name, t.dim, db.VectorHNSW,
			cfg.Retrieval.HNSWM, cfg.Retrieval.HNSWEFConstruct, t.prefix)

		err := store.CreateIndex(ctx, def)
		switch {
		case errors.Is(err, db.ErrIndexExists):
			logger.Debug("Index already exists", zap.String("index", t.name))
		case err != nil:
			return fmt.Errorf("create index %s: %w", t.name, err)
		default:
			logger.Info("Created index",
				zap.String("index", t.name),
				zap.Int("dimensions", t.dim),
				zap.String("prefix", t.prefix),
			)
		}
	}
	return nil
}
