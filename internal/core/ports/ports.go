package ports

import (
	"context"
	"io"

	"github.com/samklas/document-ai-backend/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
	FindByStatus(ctx context.Context, status domain.DocumentStatus) ([]domain.Document, error)
	// ClaimPending transitions the document from PENDING to PROCESSING in a
	// single conditional update. It reports false when the document was not
	// in PENDING status (already claimed, terminal, or gone).
	ClaimPending(ctx context.Context, id string) (bool, error)
	MarkCompleted(ctx context.Context, id string, result domain.OCRResult) error
	MarkFailed(ctx context.Context, id string, errMessage string) error
}

// ObjectStorage stores source document bytes.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue nudges the worker about freshly uploaded documents. The
// poller sweep remains the source of truth; publish failures are tolerable.
type MessageQueue interface {
	PublishDocumentPending(ctx context.Context, documentID string) error
	SubscribeDocumentPending(ctx context.Context, handler func(context.Context, string) error) error
}

// OCRClassifier sends document bytes to the external OCR/classification
// service and returns the structured result.
type OCRClassifier interface {
	Process(ctx context.Context, content io.Reader, contentType string) (domain.OCRResult, error)
}

// DocumentIngestor is the inbound contract for document upload.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, contentType string, size int64, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous processing of
// a single document.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
