package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kulturkalender/kulturkalender/internal/config"
	"github.com/kulturkalender/kulturkalender/internal/models"
)

// HTTPOCRProvider implements OCRProvider against a hosted OCR endpoint that
// accepts raw image bytes and answers {"text": ..., "confidence": ...}.
// The session identity travels in a header so the service can be rotated
// away from a blocked session.
type HTTPOCRProvider struct {
	cfg     config.OCRConfig
	client  *http.Client
	logger  *slog.Logger
	session func() string
}

// NewHTTPOCRProvider creates an OCR provider for the configured endpoint.
// sessionFn supplies the current session identity per request.
func NewHTTPOCRProvider(cfg config.OCRConfig, client *http.Client, logger *slog.Logger, sessionFn func() string) *HTTPOCRProvider {
	if sessionFn == nil {
		sessionFn = func() string { return "" }
	}
	return &HTTPOCRProvider{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		session: sessionFn,
	}
}

// Name identifies the provider.
func (p *HTTPOCRProvider) Name() string { return "ocr" }

type ocrResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// FetchText posts the image to the OCR endpoint.
func (p *HTTPOCRProvider) FetchText(ctx context.Context, image []byte) (OCRResult, error) {
	timeout := time.Duration(p.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.cfg.URL, bytes.NewReader(image))
	if err != nil {
		return OCRResult{}, fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if session := p.session(); session != "" {
		req.Header.Set("X-Session-ID", session)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return OCRResult{}, &models.EnrichmentUnavailable{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return OCRResult{}, &models.EnrichmentUnavailable{
			Provider: p.Name(),
			Err:      fmt.Errorf("ocr endpoint returned %d", resp.StatusCode),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return OCRResult{}, fmt.Errorf("ocr endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return OCRResult{}, fmt.Errorf("read ocr response: %w", err)
	}

	var parsed ocrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return OCRResult{}, fmt.Errorf("parse ocr response: %w", err)
	}

	p.logger.Debug("ocr pass complete",
		"text_length", len(parsed.Text),
		"engine_confidence", parsed.Confidence)

	return OCRResult{Text: parsed.Text, Confidence: parsed.Confidence}, nil
}
