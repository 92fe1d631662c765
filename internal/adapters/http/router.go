package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/samklas/document-ai-backend/internal/config"
	"github.com/samklas/document-ai-backend/internal/core/domain"
	"github.com/samklas/document-ai-backend/internal/core/ports"
	"github.com/samklas/document-ai-backend/internal/observability/metrics"
)

const maxUploadBytes = 32 << 20

type Router struct {
	cfg      config.Config
	ingestor ports.DocumentIngestor
	reader   ports.DocumentReader
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	ingestor ports.DocumentIngestor,
	reader ports.DocumentReader,
	serverMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:      cfg,
		ingestor: ingestor,
		reader:   reader,
		metrics:  serverMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/api/documents", rt.documents)
	mux.HandleFunc("/api/documents/", rt.getDocumentByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) documents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadDocument(w, r)
	case http.MethodGet:
		rt.listDocuments(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	doc, err := rt.ingestor.Upload(r.Context(), fileHeader.Filename, contentType, fileHeader.Size, file)
	if err != nil {
		rt.recordUpload(contentType, "rejected")
		writeError(w, err)
		return
	}

	rt.recordUpload(contentType, "accepted")
	writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.reader.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]documentListItem, 0, len(docs))
	for i := range docs {
		items = append(items, toDocumentListItem(&docs[i]))
	}
	writeJSON(w, http.StatusOK, items)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (rt *Router) recordUpload(contentType, outcome string) {
	if rt.metrics != nil {
		rt.metrics.RecordUpload(contentType, outcome)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

// documentResponse is the full client-facing summary returned by upload and
// get-by-id.
type documentResponse struct {
	ID              string  `json:"id"`
	Filename        string  `json:"filename"`
	Status          string  `json:"status"`
	DocumentType    string  `json:"document_type,omitempty"`
	ExtractedText   string  `json:"extracted_text,omitempty"`
	ConfidenceScore float64 `json:"confidence_score,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	CreatedAt       string  `json:"created_at"`
	ProcessedAt     string  `json:"processed_at,omitempty"`
}

// documentListItem is the lightweight summary for the list endpoint; it
// deliberately omits extracted text.
type documentListItem struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	Status       string `json:"status"`
	DocumentType string `json:"document_type,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func toDocumentResponse(doc *domain.Document) documentResponse {
	resp := documentResponse{
		ID:              doc.ID,
		Filename:        doc.Filename,
		Status:          string(doc.Status),
		DocumentType:    doc.DocumentType,
		ExtractedText:   doc.ExtractedText,
		ConfidenceScore: doc.ConfidenceScore,
		ErrorMessage:    doc.ErrorMessage,
		CreatedAt:       doc.CreatedAt.Format(timeFormat),
	}
	if doc.ProcessedAt != nil {
		resp.ProcessedAt = doc.ProcessedAt.Format(timeFormat)
	}
	return resp
}

func toDocumentListItem(doc *domain.Document) documentListItem {
	return documentListItem{
		ID:           doc.ID,
		Filename:     doc.Filename,
		Status:       string(doc.Status),
		DocumentType: doc.DocumentType,
		CreatedAt:    doc.CreatedAt.Format(timeFormat),
	}
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"
