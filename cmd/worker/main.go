package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samklas/document-ai-backend/internal/bootstrap"
	"github.com/samklas/document-ai-backend/internal/config"
	"github.com/samklas/document-ai-backend/internal/core/usecase"
	"github.com/samklas/document-ai-backend/internal/observability/logging"
	"github.com/samklas/document-ai-backend/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	poller := usecase.NewPendingPoller(
		app.Repo,
		app.ProcessUC,
		cfg.PollInterval,
		cfg.DispatchTimeout,
		int64(cfg.WorkerConcurrency),
		workerMetrics,
		logger,
	)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsMux,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		poller.Run(groupCtx)
		return nil
	})

	// The nudge path shares the poller's concurrency bound and timeout.
	group.Go(func() error {
		return app.Queue.SubscribeDocumentPending(groupCtx, func(handlerCtx context.Context, documentID string) error {
			return poller.Dispatch(handlerCtx, documentID)
		})
	})

	group.Go(func() error {
		logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped with error", "error", err)
	}
}
