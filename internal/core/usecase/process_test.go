package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/samklas/document-ai-backend/internal/core/domain"
)

type processRepoFake struct {
	doc *domain.Document

	claimResult bool
	claimErr    error
	claimCalls  int

	completed       []domain.OCRResult
	failedMessages  []string
	markCompleteErr error
}

func (f *processRepoFake) Create(context.Context, *domain.Document) error { return nil }

func (f *processRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.doc == nil {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("missing"))
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *processRepoFake) List(context.Context) ([]domain.Document, error) {
	return nil, errors.New("not implemented")
}

func (f *processRepoFake) FindByStatus(context.Context, domain.DocumentStatus) ([]domain.Document, error) {
	return nil, errors.New("not implemented")
}

func (f *processRepoFake) ClaimPending(context.Context, string) (bool, error) {
	f.claimCalls++
	if f.claimErr != nil {
		return false, f.claimErr
	}
	return f.claimResult, nil
}

func (f *processRepoFake) MarkCompleted(_ context.Context, _ string, result domain.OCRResult) error {
	if f.markCompleteErr != nil {
		return f.markCompleteErr
	}
	f.completed = append(f.completed, result)
	return nil
}

func (f *processRepoFake) MarkFailed(_ context.Context, _ string, errMessage string) error {
	f.failedMessages = append(f.failedMessages, errMessage)
	return nil
}

type processStorageFake struct {
	content string
	openErr error
	opened  int
}

func (f *processStorageFake) Save(context.Context, string, io.Reader) error {
	return errors.New("not implemented")
}

func (f *processStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened++
	return io.NopCloser(strings.NewReader(f.content)), nil
}

func (f *processStorageFake) Delete(context.Context, string) error {
	return errors.New("not implemented")
}

type classifierFake struct {
	result domain.OCRResult
	err    error
}

func (f *classifierFake) Process(context.Context, io.Reader, string) (domain.OCRResult, error) {
	if f.err != nil {
		return domain.OCRResult{}, f.err
	}
	return f.result, nil
}

func newProcessUC(repo *processRepoFake, storage *processStorageFake, classifier *classifierFake) *ProcessDocumentUseCase {
	return NewProcessDocumentUseCase(repo, storage, classifier, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func pendingDoc() *domain.Document {
	return &domain.Document{
		ID:          "doc-1",
		Filename:    "invoice.pdf",
		StoragePath: "doc-1_invoice.pdf",
		ContentType: "application/pdf",
		Status:      domain.StatusPending,
	}
}

func TestProcessByIDSuccess(t *testing.T) {
	repo := &processRepoFake{doc: pendingDoc(), claimResult: true}
	classifier := &classifierFake{result: domain.OCRResult{
		ExtractedText: "Invoice #42",
		DocumentType:  "INVOICE",
		Confidence:    0.93,
	}}
	uc := newProcessUC(repo, &processStorageFake{content: "pdf bytes"}, classifier)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if repo.claimCalls != 1 {
		t.Fatalf("expected 1 claim, got %d", repo.claimCalls)
	}
	if len(repo.completed) != 1 {
		t.Fatalf("expected 1 completed transition, got %d", len(repo.completed))
	}
	if repo.completed[0].DocumentType != "INVOICE" || repo.completed[0].Confidence != 0.93 {
		t.Fatalf("unexpected completion result: %+v", repo.completed[0])
	}
	if len(repo.failedMessages) != 0 {
		t.Fatalf("expected no failed transition, got %v", repo.failedMessages)
	}
}

func TestProcessByIDSkipsNonPendingDocument(t *testing.T) {
	repo := &processRepoFake{doc: pendingDoc(), claimResult: false}
	storage := &processStorageFake{content: "pdf bytes"}
	uc := newProcessUC(repo, storage, &classifierFake{})

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v, non-pending dispatch must be a no-op", err)
	}
	if storage.opened != 0 {
		t.Fatalf("expected no storage read for unclaimed document")
	}
	if len(repo.completed) != 0 || len(repo.failedMessages) != 0 {
		t.Fatalf("expected no state change for unclaimed document")
	}
}

func TestProcessByIDIgnoresVanishedDocument(t *testing.T) {
	repo := &processRepoFake{claimErr: domain.WrapError(domain.ErrDocumentNotFound, "claim", errors.New("gone"))}
	uc := newProcessUC(repo, &processStorageFake{}, &classifierFake{})

	if err := uc.ProcessByID(context.Background(), "doc-gone"); err != nil {
		t.Fatalf("ProcessByID() error = %v, vanished document must not surface", err)
	}
}

func TestProcessByIDMarksFailedOnClassifierError(t *testing.T) {
	repo := &processRepoFake{doc: pendingDoc(), claimResult: true}
	classifier := &classifierFake{err: domain.WrapError(domain.ErrServiceUnavailable, "process document", errors.New("connection refused"))}
	uc := newProcessUC(repo, &processStorageFake{content: "pdf bytes"}, classifier)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.failedMessages) != 1 {
		t.Fatalf("expected 1 failed transition, got %d", len(repo.failedMessages))
	}
	if !strings.Contains(repo.failedMessages[0], "connection refused") {
		t.Fatalf("expected underlying cause in error message, got %q", repo.failedMessages[0])
	}
	if len(repo.completed) != 0 {
		t.Fatalf("expected no completed transition on failure")
	}
}

func TestProcessByIDMarksFailedOnStorageReadError(t *testing.T) {
	repo := &processRepoFake{doc: pendingDoc(), claimResult: true}
	storage := &processStorageFake{openErr: errors.New("blob missing")}
	uc := newProcessUC(repo, storage, &classifierFake{})

	err := uc.ProcessByID(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.failedMessages) != 1 || !strings.Contains(repo.failedMessages[0], "blob missing") {
		t.Fatalf("expected failed transition with cause, got %v", repo.failedMessages)
	}
}

func TestProcessByIDRecordsFailureAfterDispatchTimeout(t *testing.T) {
	repo := &processRepoFake{doc: pendingDoc(), claimResult: true}
	classifier := &classifierFake{err: context.DeadlineExceeded}
	uc := newProcessUC(repo, &processStorageFake{content: "pdf bytes"}, classifier)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Even with the dispatch context gone, the document must settle at
	// FAILED rather than stay stuck at PROCESSING.
	err := uc.ProcessByID(ctx, "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.failedMessages) != 1 {
		t.Fatalf("expected failed transition despite expired context, got %v", repo.failedMessages)
	}
}
