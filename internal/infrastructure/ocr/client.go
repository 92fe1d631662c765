package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/samklas/document-ai-backend/internal/core/domain"
	"github.com/samklas/document-ai-backend/internal/infrastructure/resilience"
)

// Client calls the external OCR/classification service. It is stateless
// aside from the configured endpoint and safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout time.Duration
	// Executor, when set, retries transient failures with backoff and trips
	// a circuit breaker during sustained outages. The HTTP call itself
	// performs no retries.
	Executor *resilience.Executor
}

func New(baseURL string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.Executor,
	}
}

// serviceResponse mirrors the wire shape of the OCR service success body.
type serviceResponse struct {
	ExtractedText *string  `json:"extractedText"`
	DocumentType  *string  `json:"documentType"`
	Confidence    *float64 `json:"confidence"`
}

func (c *Client) Process(ctx context.Context, content io.Reader, contentType string) (domain.OCRResult, error) {
	// Buffer the payload once so retry attempts can resend it.
	payload, err := io.ReadAll(content)
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("read document content: %w", err)
	}

	var result domain.OCRResult
	call := func(callCtx context.Context) error {
		res, err := c.processOnce(callCtx, payload, contentType)
		if err != nil {
			return err
		}
		result = res
		return nil
	}

	if c.executor != nil {
		err = c.executor.Execute(ctx, "ocr.process", call, classifyOCRError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.OCRResult{}, wrapCommunicationError("process document", err)
	}
	return result, nil
}

func (c *Client) processOnce(ctx context.Context, payload []byte, contentType string) (domain.OCRResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="document"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("create multipart field: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return domain.OCRResult{}, fmt.Errorf("write multipart payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return domain.OCRResult{}, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/process", &body)
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.OCRResult{}, newHTTPStatusError(resp)
	}

	var decoded serviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.OCRResult{}, fmt.Errorf("decode ocr response: %w", err)
	}
	if decoded.ExtractedText == nil || decoded.DocumentType == nil || decoded.Confidence == nil {
		return domain.OCRResult{}, fmt.Errorf("incomplete ocr response body")
	}

	return domain.OCRResult{
		ExtractedText: *decoded.ExtractedText,
		DocumentType:  *decoded.DocumentType,
		Confidence:    *decoded.Confidence,
	}, nil
}
