package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avetisov/ragline/internal/config"
	"github.com/avetisov/ragline/internal/core/ports"
	"github.com/avetisov/ragline/internal/core/usecase"
	"github.com/avetisov/ragline/internal/infrastructure/embedding/charcode"
	"github.com/avetisov/ragline/internal/infrastructure/llm/ollama"
	"github.com/avetisov/ragline/internal/infrastructure/queue/nats"
	"github.com/avetisov/ragline/internal/infrastructure/repository/postgres"
	"github.com/avetisov/ragline/internal/infrastructure/resilience"
	"github.com/avetisov/ragline/internal/infrastructure/storage/s3"
	"github.com/avetisov/ragline/internal/infrastructure/vector/memory"
	"github.com/avetisov/ragline/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    ports.EventQueue
	Journal  ports.IngestJournal
	IngestUC ports.BatchIngestor
	ChatUC   ports.ChatService
	UploadUC ports.DocumentUploader

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:     time.Duration(cfg.RetryMaxBackoffMS) * time.Millisecond,
		BreakerEnabled:      cfg.BreakerEnabled,
	})

	store, err := s3.New(ctx, s3.Options{
		Endpoint:       cfg.S3Endpoint,
		Region:         cfg.S3Region,
		AccessKey:      cfg.S3AccessKey,
		SecretKey:      cfg.S3SecretKey,
		ForcePathStyle: cfg.S3ForcePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	generator := ollama.NewGenerator(ollamaClient)

	truncate := cfg.EmbedOversizePolicy == "truncate"
	var embedder ports.Embedder
	switch cfg.EmbedderBackend {
	case "local":
		embedder = charcode.New(cfg.EmbeddingDim, cfg.EmbedMaxChars, truncate)
	default:
		embedder = ollama.NewEmbedder(ollamaClient, ollama.EmbedderOptions{
			Dimension: cfg.EmbeddingDim,
			MaxChars:  cfg.EmbedMaxChars,
			Truncate:  truncate,
		})
	}

	var index ports.VectorIndex
	switch cfg.VectorBackend {
	case "memory":
		index = memory.New(cfg.EmbeddingDim)
	default:
		index = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.EmbeddingDim)
	}

	var journal ports.IngestJournal
	closeDB := func() {}
	if cfg.JournalEnabled {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			queue.Close()
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := postgres.NewJournalRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			queue.Close()
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		journal = repo
		closeDB = func() { _ = db.Close() }
	}

	ingestUC := usecase.NewIngestBatch(store, embedder, index, journal, executor, logger, usecase.Timeouts{
		Fetch: time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
		Embed: time.Duration(cfg.EmbedTimeoutSeconds) * time.Second,
		Index: time.Duration(cfg.IndexTimeoutSeconds) * time.Second,
	})
	chatUC := usecase.NewChat(embedder, index, generator, logger, usecase.ChatOptions{
		DefaultTopK:     cfg.RAGTopK,
		MaxTopK:         cfg.RAGTopKMax,
		EmbedTimeout:    time.Duration(cfg.EmbedTimeoutSeconds) * time.Second,
		GenerateTimeout: time.Duration(cfg.GenerateTimeoutSeconds) * time.Second,
	})
	uploadUC := usecase.NewUploadDocument(store, queue, cfg.S3Bucket)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:    queue,
		Journal:  journal,
		IngestUC: ingestUC,
		ChatUC:   chatUC,
		UploadUC: uploadUC,

		closeFn: func() {
			queue.Close()
			closeDB()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
