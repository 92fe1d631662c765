package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samklas/document-ai-backend/internal/core/domain"
	"github.com/samklas/document-ai-backend/internal/core/ports"
)

// ProcessDocumentUseCase drives a single document through the
// PENDING -> PROCESSING -> COMPLETED/FAILED lifecycle.
type ProcessDocumentUseCase struct {
	repo       ports.DocumentRepository
	storage    ports.ObjectStorage
	classifier ports.OCRClassifier
	logger     *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	classifier ports.OCRClassifier,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:       repo,
		storage:    storage,
		classifier: classifier,
		logger:     logger,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	// The conditional claim is the at-most-once admission check: only the
	// dispatch that flips PENDING -> PROCESSING proceeds. A concurrent
	// dispatch, a terminal document, or a deleted row all land here with
	// claimed == false and no side effects.
	claimed, err := uc.repo.ClaimPending(ctx, documentID)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			uc.logger.Warn("document vanished before claim", "document_id", documentID)
			return nil
		}
		return fmt.Errorf("claim document %s: %w", documentID, err)
	}
	if !claimed {
		uc.logger.Debug("document not pending, skipping", "document_id", documentID)
		return nil
	}

	result, err := uc.runOCR(ctx, documentID)
	if err != nil {
		// The failure persist must survive an expired dispatch deadline,
		// otherwise a timed-out document would stick at PROCESSING.
		failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if failErr := uc.repo.MarkFailed(failCtx, documentID, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %w", err, failErr)
		}
		uc.logger.Error("document processing failed", "document_id", documentID, "error", err)
		return err
	}

	if err := uc.repo.MarkCompleted(ctx, documentID, result); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	uc.logger.Info("document processed",
		"document_id", documentID,
		"document_type", result.DocumentType,
		"confidence", result.Confidence,
	)
	return nil
}

func (uc *ProcessDocumentUseCase) runOCR(ctx context.Context, documentID string) (domain.OCRResult, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("fetch claimed document: %w", err)
	}

	content, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("open stored bytes: %w", err)
	}
	defer content.Close()

	result, err := uc.classifier.Process(ctx, content, doc.ContentType)
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("ocr classification: %w", err)
	}
	return result, nil
}
