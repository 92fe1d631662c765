package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/samklas/document-ai-backend/internal/core/domain"
)

type uploadRepoFake struct {
	created *domain.Document
	err     error
}

func (f *uploadRepoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.err != nil {
		return f.err
	}
	copyDoc := *doc
	f.created = &copyDoc
	return nil
}

func (f *uploadRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	return nil, errors.New("not implemented")
}
func (f *uploadRepoFake) List(context.Context) ([]domain.Document, error) {
	return nil, errors.New("not implemented")
}
func (f *uploadRepoFake) FindByStatus(context.Context, domain.DocumentStatus) ([]domain.Document, error) {
	return nil, errors.New("not implemented")
}
func (f *uploadRepoFake) ClaimPending(context.Context, string) (bool, error) {
	return false, errors.New("not implemented")
}
func (f *uploadRepoFake) MarkCompleted(context.Context, string, domain.OCRResult) error {
	return errors.New("not implemented")
}
func (f *uploadRepoFake) MarkFailed(context.Context, string, string) error {
	return errors.New("not implemented")
}

type uploadStorageFake struct {
	savedKey   string
	savedBody  string
	deletedKey string
	saveErr    error
}

func (f *uploadStorageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *uploadStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *uploadStorageFake) Delete(_ context.Context, key string) error {
	f.deletedKey = key
	return nil
}

type uploadQueueFake struct {
	documentID string
	err        error
}

func (f *uploadQueueFake) PublishDocumentPending(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.documentID = documentID
	return nil
}

func (f *uploadQueueFake) SubscribeDocumentPending(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func newUploadUC(repo *uploadRepoFake, storage *uploadStorageFake, queue *uploadQueueFake) *UploadDocumentUseCase {
	return NewUploadDocumentUseCase(repo, storage, queue, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestUploadSuccessCreatesPendingDocument(t *testing.T) {
	repo := &uploadRepoFake{}
	storage := &uploadStorageFake{}
	queue := &uploadQueueFake{}
	uc := newUploadUC(repo, storage, queue)

	body := []byte("%PDF-1.4 fake")
	doc, err := uc.Upload(context.Background(), "scan 1.pdf", "application/pdf", int64(len(body)), bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ID == "" {
		t.Fatalf("expected document id")
	}
	if doc.Status != domain.StatusPending {
		t.Fatalf("expected status PENDING, got %s", doc.Status)
	}
	if doc.ExtractedText != "" || doc.DocumentType != "" || doc.ConfidenceScore != 0 {
		t.Fatalf("expected no classification fields on upload, got %+v", doc)
	}
	if doc.ProcessedAt != nil {
		t.Fatalf("expected nil processed_at on upload")
	}
	if repo.created == nil {
		t.Fatalf("expected repo.Create call")
	}
	if !strings.Contains(storage.savedKey, "_scan_1.pdf") {
		t.Fatalf("expected sanitized key suffix, got %s", storage.savedKey)
	}
	if storage.savedBody != string(body) {
		t.Fatalf("stored body mismatch")
	}
	if queue.documentID != doc.ID {
		t.Fatalf("expected pending nudge for %s, got %s", doc.ID, queue.documentID)
	}
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	repo := &uploadRepoFake{}
	storage := &uploadStorageFake{}
	uc := newUploadUC(repo, storage, &uploadQueueFake{})

	_, err := uc.Upload(context.Background(), "empty.pdf", "application/pdf", 0, bytes.NewReader(nil))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if storage.savedKey != "" {
		t.Fatalf("expected no storage write for rejected upload")
	}
	if repo.created != nil {
		t.Fatalf("expected no row for rejected upload")
	}
}

func TestUploadRejectsUnsupportedContentType(t *testing.T) {
	repo := &uploadRepoFake{}
	storage := &uploadStorageFake{}
	uc := newUploadUC(repo, storage, &uploadQueueFake{})

	_, err := uc.Upload(context.Background(), "notes.txt", "text/plain", 10, strings.NewReader("plain text"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if storage.savedKey != "" || repo.created != nil {
		t.Fatalf("expected no state created for rejected upload")
	}
}

func TestUploadAcceptsContentTypeWithParameters(t *testing.T) {
	repo := &uploadRepoFake{}
	uc := newUploadUC(repo, &uploadStorageFake{}, &uploadQueueFake{})

	doc, err := uc.Upload(context.Background(), "photo.jpg", "image/jpeg; charset=binary", 4, strings.NewReader("jpeg"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ContentType != "image/jpeg" {
		t.Fatalf("expected normalized content type, got %s", doc.ContentType)
	}
}

func TestUploadCleansUpBlobWhenRowInsertFails(t *testing.T) {
	repo := &uploadRepoFake{err: errors.New("insert failed")}
	storage := &uploadStorageFake{}
	uc := newUploadUC(repo, storage, &uploadQueueFake{})

	_, err := uc.Upload(context.Background(), "scan.pdf", "application/pdf", 4, strings.NewReader("data"))
	if !domain.IsKind(err, domain.ErrStorageWrite) {
		t.Fatalf("expected ErrStorageWrite, got %v", err)
	}
	if storage.deletedKey == "" || storage.deletedKey != storage.savedKey {
		t.Fatalf("expected compensating blob delete for %s, got %s", storage.savedKey, storage.deletedKey)
	}
}

func TestUploadToleratesQueuePublishFailure(t *testing.T) {
	repo := &uploadRepoFake{}
	queue := &uploadQueueFake{err: errors.New("queue down")}
	uc := newUploadUC(repo, &uploadStorageFake{}, queue)

	doc, err := uc.Upload(context.Background(), "scan.pdf", "application/pdf", 4, strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Upload() error = %v, nudge failures must not fail the upload", err)
	}
	if doc.Status != domain.StatusPending {
		t.Fatalf("expected PENDING document, got %s", doc.Status)
	}
}
