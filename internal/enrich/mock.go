package enrich

import (
	"context"

	"github.com/kulturkalender/kulturkalender/internal/models"
)

// MockOCRProvider returns canned results, for tests and offline runs.
type MockOCRProvider struct {
	Result OCRResult
	Err    error
	Calls  int
}

// Name identifies the provider.
func (m *MockOCRProvider) Name() string { return "mock-ocr" }

// FetchText returns the canned result.
func (m *MockOCRProvider) FetchText(ctx context.Context, image []byte) (OCRResult, error) {
	m.Calls++
	if m.Err != nil {
		return OCRResult{}, m.Err
	}
	return m.Result, nil
}

// MockAIProvider returns a canned partial event, for tests and offline runs.
type MockAIProvider struct {
	Partial    PartialEvent
	Confidence float64
	Err        error
	Calls      int
	LastText   string
}

// Name identifies the provider.
func (m *MockAIProvider) Name() string { return "mock-ai" }

// Extract returns the canned guess.
func (m *MockAIProvider) Extract(ctx context.Context, text string, hints Hints) (PartialEvent, float64, error) {
	m.Calls++
	m.LastText = text
	if m.Err != nil {
		return PartialEvent{}, 0, m.Err
	}
	return m.Partial, m.Confidence, nil
}

// Unavailable wraps err so mocks can simulate provider outages.
func Unavailable(provider string, err error) error {
	return &models.EnrichmentUnavailable{Provider: provider, Err: err}
}
