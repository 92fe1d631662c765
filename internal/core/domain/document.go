package domain

import "time"

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "PENDING"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusCompleted  DocumentStatus = "COMPLETED"
	StatusFailed     DocumentStatus = "FAILED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Document struct {
	ID              string         `json:"id"`
	Filename        string         `json:"filename"`
	StoragePath     string         `json:"storage_path"`
	ContentType     string         `json:"content_type"`
	FileSize        int64          `json:"file_size"`
	Status          DocumentStatus `json:"status"`
	DocumentType    string         `json:"document_type,omitempty"`
	ExtractedText   string         `json:"extracted_text,omitempty"`
	ConfidenceScore float64        `json:"confidence_score,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
}

// OCRResult is the structured output of the external OCR/classification
// service for a single document.
type OCRResult struct {
	ExtractedText string  `json:"extracted_text"`
	DocumentType  string  `json:"document_type"`
	Confidence    float64 `json:"confidence"`
}
