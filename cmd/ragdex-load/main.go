// ragdex-load ingests a JSONL corpus into the store: source entities plus
// their embedding records. The API server never writes embeddings, so this
// is the write path for standing up a searchable corpus.
//
// Usage:
//
//	ragdex-load -file corpus.jsonl -collection documents
//	ragdex-load -file images.jsonl -collection images
//
// Document lines: {"id","title","content","language","tags","metadata"}
// Image lines:    {"id","url","title","description","metadata"}
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kestrel-cloud/ragdex/internal/config"
	dbRedis "github.com/kestrel-cloud/ragdex/internal/db/redis"
	"github.com/kestrel-cloud/ragdex/internal/domain"
	logpkg "github.com/kestrel-cloud/ragdex/internal/logger"
	embeddingrepo "github.com/kestrel-cloud/ragdex/internal/repository/embedding"
	sourcerepo "github.com/kestrel-cloud/ragdex/internal/repository/source"
	openaiTransport "github.com/kestrel-cloud/ragdex/internal/transport/openai"
)

const maxLineBytes = 1 << 20

func main() {
	file := flag.String("file", "", "JSONL corpus file")
	collection := flag.String("collection", domain.CollectionDocuments, "target collection: documents or images")
	batchSize := flag.Int("batch", 64, "embedding records per write batch")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*file, *collection, *batchSize); err != nil {
		fmt.Fprintln(os.Stderr, "ragdex-load:", err)
		os.Exit(1)
	}
}

func run(file, collection string, batchSize int) error {
	_ = godotenv.Load()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("store not ready: %w", err)
	}

	ld := &loader{
		embeddings: embeddingrepo.New(store, cfg.Storage.KeyPrefix, cfg.Retrieval.MaxScanKeys),
		sources:    sourcerepo.New(store, cfg.Storage.KeyPrefix),
		batchSize:  batchSize,
		logger:     logger,
	}

	f, err := os.Open(file) //nolint:gosec // operator-supplied path
	if err != nil {
		return fmt.Errorf("open corpus: %w", err)
	}
	defer func() { _ = f.Close() }()

	start := time.Now()

	switch collection {
	case domain.CollectionDocuments:
		ld.embedText = newTextEmbedder(cfg, logger)
		err = ld.loadDocuments(ctx, f)
	case domain.CollectionImages:
		ld.embedImage = openaiTransport.NewCLIPEmbedder(&openaiTransport.Config{
			APIKey:     cfg.Embedding.CLIP.APIKey,
			BaseURL:    cfg.Embedding.CLIP.BaseURL,
			Model:      cfg.Embedding.CLIP.Model,
			Dimensions: cfg.Embedding.CLIP.Dimensions,
			Provider:   "clip",
			Logger:     logger,
		})
		ld.fetcher = openaiTransport.NewImageFetcher(
			time.Duration(cfg.Embedding.FetchTimeoutSec)*time.Second,
			cfg.Embedding.MaxImageBytes,
		)
		err = ld.loadImages(ctx, f)
	default:
		return fmt.Errorf("unknown collection %q", collection)
	}
	if err != nil {
		return err
	}

	logger.Info("Corpus load finished",
		zap.String("collection", collection),
		zap.Int("processed", ld.processed),
		zap.Int("failed", ld.failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func newTextEmbedder(cfg config.Config, logger *zap.Logger) domain.TextEmbedder {
	return openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.Text.APIKey,
		BaseURL:    cfg.Embedding.Text.BaseURL,
		Model:      cfg.Embedding.Text.Model,
		Dimensions: cfg.Embedding.Text.Dimensions,
		Provider:   "text",
		Logger:     logger,
	})
}

type loader struct {
	embeddings *embeddingrepo.Repo
	sources    *sourcerepo.Repo
	embedText  domain.TextEmbedder
	embedImage domain.ImageEmbedder
	fetcher    *openaiTransport.ImageFetcher
	batchSize  int
	logger     *zap.Logger

	processed int
	failed    int
	batch     []domain.EmbeddingRecord
}

func (l *loader) loadDocuments(ctx context.Context, f *os.File) error {
	return l.scan(ctx, f, func(line []byte) error {
		var doc domain.Document
		if err := json.Unmarshal(line, &doc); err != nil {
			return fmt.Errorf("parse document: %w", err)
		}
		if doc.ID == "" || doc.Content == "" {
			return fmt.Errorf("document needs id and content")
		}

		emb, err := l.embedText.EmbedText(ctx, doc.Title+"\n"+doc.Content)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", doc.ID, err)
		}
		if err := l.sources.PutDocument(ctx, &doc); err != nil {
			return fmt.Errorf("store document %s: %w", doc.ID, err)
		}

		return l.queue(ctx, domain.EmbeddingRecord{
			ID:            doc.ID,
			Vector:        emb.Vector,
			Modality:      domain.ModalityText,
			ModelID:       emb.ModelID,
			RefID:         doc.ID,
			RefCollection: domain.CollectionDocuments,
			CreatedAt:     time.Now().UTC(),
			Metadata:      doc.Metadata,
			Content:       doc.Content,
		})
	})
}

func (l *loader) loadImages(ctx context.Context, f *os.File) error {
	return l.scan(ctx, f, func(line []byte) error {
		var img domain.Image
		if err := json.Unmarshal(line, &img); err != nil {
			return fmt.Errorf("parse image: %w", err)
		}
		if img.ID == "" || img.URL == "" {
			return fmt.Errorf("image needs id and url")
		}

		data, err := l.fetcher.Fetch(ctx, img.URL)
		if err != nil {
			return fmt.Errorf("fetch image %s: %w", img.ID, err)
		}
		emb, err := l.embedImage.EmbedImage(ctx, data)
		if err != nil {
			return fmt.Errorf("embed image %s: %w", img.ID, err)
		}
		if err := l.sources.PutImage(ctx, &img); err != nil {
			return fmt.Errorf("store image %s: %w", img.ID, err)
		}

		return l.queue(ctx, domain.EmbeddingRecord{
			ID:            img.ID,
			Vector:        emb.Vector,
			Modality:      domain.ModalityImage,
			ModelID:       emb.ModelID,
			RefID:         img.ID,
			RefCollection: domain.CollectionImages,
			CreatedAt:     time.Now().UTC(),
			Metadata:      img.Metadata,
		})
	})
}

// scan walks the JSONL file line by line. Per-line failures are counted and
// logged but do not stop the load; a canceled context does.
func (l *loader) scan(ctx context.Context, f *os.File, handle func(line []byte) error) error {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if err := handle(line); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("load interrupted: %w", ctx.Err())
			}
			l.failed++
			l.logger.Warn("Skipping corpus line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}

		l.processed++
		if l.processed%500 == 0 {
			l.logger.Info("Load progress",
				zap.Int("processed", l.processed),
				zap.Int("failed", l.failed),
			)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}

	return l.flush(ctx)
}

// queue buffers a record, flushing a full batch in one round trip.
func (l *loader) queue(ctx context.Context, rec domain.EmbeddingRecord) error {
	l.batch = append(l.batch, rec)
	if len(l.batch) < l.batchSize {
		return nil
	}
	return l.flush(ctx)
}

func (l *loader) flush(ctx context.Context) error {
	if len(l.batch) == 0 {
		return nil
	}
	if err := l.embeddings.PutMulti(ctx, l.batch); err != nil {
		return fmt.Errorf("write embedding batch: %w", err)
	}
	l.batch = l.batch[:0]
	return nil
}
