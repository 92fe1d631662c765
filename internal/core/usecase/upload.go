package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samklas/document-ai-backend/internal/core/domain"
	"github.com/samklas/document-ai-backend/internal/core/ports"
)

// allowedContentTypes is the intake allowlist. Anything else is rejected
// before any state is created.
var allowedContentTypes = map[string]struct{}{
	"image/png":       {},
	"image/jpeg":      {},
	"application/pdf": {},
}

type UploadDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	logger  *slog.Logger
}

func NewUploadDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	logger *slog.Logger,
) *UploadDocumentUseCase {
	return &UploadDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		logger:  logger,
	}
}

func (uc *UploadDocumentUseCase) Upload(
	ctx context.Context,
	filename, contentType string,
	size int64,
	body io.Reader,
) (*domain.Document, error) {
	if size <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("file is empty"))
	}
	normalized := normalizeContentType(contentType)
	if _, ok := allowedContentTypes[normalized]; !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload",
			fmt.Errorf("unsupported content type %q", contentType))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, domain.WrapError(domain.ErrStorageWrite, "save document bytes", err)
	}

	doc := &domain.Document{
		ID:          id,
		Filename:    filename,
		StoragePath: storageKey,
		ContentType: normalized,
		FileSize:    size,
		Status:      domain.StatusPending,
		CreatedAt:   now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		// Compensate for the blob already written so no orphaned file
		// remains behind a missing row.
		if delErr := uc.storage.Delete(ctx, storageKey); delErr != nil {
			uc.logger.Warn("orphaned blob cleanup failed",
				"document_id", id, "storage_key", storageKey, "error", delErr)
		}
		return nil, domain.WrapError(domain.ErrStorageWrite, "create document row", err)
	}

	// Best-effort nudge; the poller sweep picks the row up regardless.
	if err := uc.queue.PublishDocumentPending(ctx, doc.ID); err != nil {
		uc.logger.Warn("pending nudge publish failed, deferring to poller",
			"document_id", doc.ID, "error", err)
	}

	return doc, nil
}

func normalizeContentType(contentType string) string {
	normalized := strings.TrimSpace(strings.ToLower(contentType))
	if idx := strings.Index(normalized, ";"); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	return normalized
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
