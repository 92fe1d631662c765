package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samklas/document-ai-backend/internal/config"
	"github.com/samklas/document-ai-backend/internal/core/ports"
	"github.com/samklas/document-ai-backend/internal/core/usecase"
	"github.com/samklas/document-ai-backend/internal/infrastructure/ocr"
	"github.com/samklas/document-ai-backend/internal/infrastructure/queue/nats"
	"github.com/samklas/document-ai-backend/internal/infrastructure/repository/postgres"
	"github.com/samklas/document-ai-backend/internal/infrastructure/resilience"
	"github.com/samklas/document-ai-backend/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Repo    ports.DocumentRepository
	Storage ports.ObjectStorage
	Queue   ports.MessageQueue

	UploadUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: cfg.OCRRetryMaxAttempts,
		BreakerEnabled:   cfg.OCRBreakerEnabled,
	})

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	classifier := ocr.New(cfg.OCRServiceURL, ocr.Options{
		Timeout:  cfg.OCRTimeout,
		Executor: executor,
	})

	uploadUC := usecase.NewUploadDocumentUseCase(repo, storage, queue, logger)
	processUC := usecase.NewProcessDocumentUseCase(repo, storage, classifier, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Repo:    repo,
		Storage: storage,
		Queue:   queue,

		UploadUC:  uploadUC,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
