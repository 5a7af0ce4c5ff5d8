package enrich

import (
	"context"
	"time"
)

// OCRResult is the outcome of one OCR pass over an image.
type OCRResult struct {
	Text       string
	Confidence float64 // engine-reported, 0-1
}

// OCRProvider extracts text from image bytes. Implementations are swappable
// behind this contract; the pipeline never depends on a concrete engine.
type OCRProvider interface {
	// Name identifies the provider for logging and throttling.
	Name() string

	// FetchText runs OCR over the image and returns text plus engine
	// confidence. Provider outages surface as *models.EnrichmentUnavailable.
	FetchText(ctx context.Context, image []byte) (OCRResult, error)
}

// Hints carries context for the AI extraction pass.
type Hints struct {
	Language string
	SourceID string
}

// PartialEvent is a best-effort structured guess from free text. Empty
// fields mean the extractor could not determine them.
type PartialEvent struct {
	Title     string     `json:"title"`
	Start     *time.Time `json:"start"`
	End       *time.Time `json:"end"`
	Location  string     `json:"location"`
	Organizer string     `json:"organizer"`
}

// AIProvider turns announcement text into a structured guess with a
// provider-reported or heuristic confidence.
type AIProvider interface {
	// Name identifies the provider for logging and throttling.
	Name() string

	// Extract parses free text into a partial event. Provider outages
	// surface as *models.EnrichmentUnavailable.
	Extract(ctx context.Context, text string, hints Hints) (PartialEvent, float64, error)
}
