package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/samklas/document-ai-backend/internal/core/domain"
	"github.com/samklas/document-ai-backend/internal/core/ports"
)

// PollerMetrics receives lifecycle observations from the poller. Implemented
// by the prometheus worker metrics; a no-op fallback keeps tests light.
type PollerMetrics interface {
	SweepCompleted(pending int)
	DispatchStarted()
	DispatchFinished(duration time.Duration, err error)
	ObserveQueueLag(lag time.Duration)
}

type nopPollerMetrics struct{}

func (nopPollerMetrics) SweepCompleted(int)                    {}
func (nopPollerMetrics) DispatchStarted()                      {}
func (nopPollerMetrics) DispatchFinished(time.Duration, error) {}
func (nopPollerMetrics) ObserveQueueLag(time.Duration)         {}

// PendingPoller sweeps PENDING documents on a fixed interval and dispatches
// each one concurrently. Concurrency is bounded by a weighted semaphore and
// dispatch errors stay contained to their document.
type PendingPoller struct {
	repo            ports.DocumentRepository
	processor       ports.DocumentProcessor
	interval        time.Duration
	dispatchTimeout time.Duration
	sem             *semaphore.Weighted
	metrics         PollerMetrics
	logger          *slog.Logger
	wg              sync.WaitGroup
}

func NewPendingPoller(
	repo ports.DocumentRepository,
	processor ports.DocumentProcessor,
	interval time.Duration,
	dispatchTimeout time.Duration,
	concurrency int64,
	metrics PollerMetrics,
	logger *slog.Logger,
) *PendingPoller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if dispatchTimeout <= 0 {
		dispatchTimeout = 2 * time.Minute
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if metrics == nil {
		metrics = nopPollerMetrics{}
	}
	return &PendingPoller{
		repo:            repo,
		processor:       processor,
		interval:        interval,
		dispatchTimeout: dispatchTimeout,
		sem:             semaphore.NewWeighted(concurrency),
		metrics:         metrics,
		logger:          logger,
	}
}

// Run blocks until ctx is cancelled, then drains in-flight dispatches.
func (p *PendingPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("pending poller started", "interval", p.interval.String())
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pending poller stopping, draining dispatches")
			p.wg.Wait()
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *PendingPoller) sweep(ctx context.Context) {
	pending, err := p.repo.FindByStatus(ctx, domain.StatusPending)
	if err != nil {
		p.logger.Error("pending sweep query failed", "error", err)
		return
	}
	p.metrics.SweepCompleted(len(pending))
	if len(pending) == 0 {
		return
	}
	p.logger.Info("pending documents found", "count", len(pending))

	for _, doc := range pending {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return
		}
		p.wg.Add(1)
		go func(doc domain.Document) {
			defer p.wg.Done()
			defer p.sem.Release(1)
			p.metrics.ObserveQueueLag(time.Since(doc.CreatedAt))
			if err := p.dispatch(ctx, doc.ID); err != nil {
				p.logger.Error("dispatch failed", "document_id", doc.ID, "error", err)
			}
		}(doc)
	}
}

// Dispatch processes a single document under the same concurrency bound and
// timeout as swept documents. Used by the queue nudge path.
func (p *PendingPoller) Dispatch(ctx context.Context, documentID string) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return p.dispatch(ctx, documentID)
}

func (p *PendingPoller) dispatch(ctx context.Context, documentID string) error {
	dispatchCtx, cancel := context.WithTimeout(ctx, p.dispatchTimeout)
	defer cancel()

	p.metrics.DispatchStarted()
	start := time.Now()
	err := p.processor.ProcessByID(dispatchCtx, documentID)
	p.metrics.DispatchFinished(time.Since(start), err)
	return err
}
