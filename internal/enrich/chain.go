package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/kulturkalender/kulturkalender/internal/models"
)

// Chain runs the optional enrichers over a candidate in fixed order: OCR
// over attached images first, then AI extraction over the combined text.
// Both passes only fill or correct fields; a provider failure degrades that
// single pass and the candidate keeps whatever it already had.
type Chain struct {
	ocr         OCRProvider
	ai          AIProvider
	ocrThrottle *Throttle
	aiThrottle  *Throttle
	client      *http.Client
	logger      *slog.Logger
}

// Outcome reports which passes ran and what they contributed.
type Outcome struct {
	OCRRan        bool
	OCRConfidence float64
	AIRan         bool
	AIConfidence  float64
}

// NewChain wires the chain; either provider may be nil to disable its pass.
func NewChain(ocr OCRProvider, ai AIProvider, ocrThrottle, aiThrottle *Throttle, client *http.Client, logger *slog.Logger) *Chain {
	return &Chain{
		ocr:         ocr,
		ai:          ai,
		ocrThrottle: ocrThrottle,
		aiThrottle:  aiThrottle,
		client:      client,
		logger:      logger,
	}
}

// OCRSession exposes the OCR throttle's session identity for providers that
// carry it per request.
func (c *Chain) OCRSession() string {
	if c.ocrThrottle == nil {
		return ""
	}
	return c.ocrThrottle.Session()
}

// Enrich mutates the candidate in place and reports what ran. It never
// returns an error: enrichment is optional and never discards prior fields.
func (c *Chain) Enrich(ctx context.Context, candidate *models.CandidateEvent, ocrEnabled bool) Outcome {
	var outcome Outcome

	ocrText := ""
	if c.ocr != nil && ocrEnabled && len(candidate.ImageURLs) > 0 {
		ocrText, outcome.OCRConfidence = c.runOCR(ctx, candidate)
		outcome.OCRRan = ocrText != ""
	}

	if c.ai != nil {
		text := strings.TrimSpace(candidate.Description + "\n" + ocrText)
		if text != "" {
			outcome.AIRan, outcome.AIConfidence = c.runAI(ctx, candidate, text)
		}
	}

	return outcome
}

// runOCR downloads each attached image, runs the provider over it and merges
// whatever the recognized text yields into empty candidate fields.
func (c *Chain) runOCR(ctx context.Context, candidate *models.CandidateEvent) (string, float64) {
	var texts []string
	best := 0.0

	for _, imageURL := range candidate.ImageURLs {
		if c.ocrThrottle != nil {
			if _, err := c.ocrThrottle.Wait(ctx); err != nil {
				c.logger.Warn("ocr throttle interrupted", "error", err)
				break
			}
		}

		image, err := c.downloadImage(ctx, imageURL)
		if err != nil {
			c.logger.Warn("image download failed, skipping ocr for image",
				"source", candidate.SourceID,
				"image_url", imageURL,
				"error", err)
			continue
		}

		result, err := c.ocr.FetchText(ctx, image)
		if err != nil {
			if models.IsEnrichmentUnavailable(err) {
				c.logger.Warn("ocr provider unavailable, keeping prior fields",
					"source", candidate.SourceID,
					"error", err)
				break
			}
			c.logger.Warn("ocr pass failed for image",
				"source", candidate.SourceID,
				"image_url", imageURL,
				"error", err)
			continue
		}
		if strings.TrimSpace(result.Text) == "" {
			continue
		}

		texts = append(texts, result.Text)
		confidence := deriveOCRConfidence(result)
		if confidence > best {
			best = confidence
		}
	}

	if len(texts) == 0 {
		return "", 0
	}

	joined := strings.Join(texts, "\n")
	c.mergeText(candidate, joined, "ocr")
	return joined, best
}

// runAI runs the extraction provider and merges its guess into empty fields.
func (c *Chain) runAI(ctx context.Context, candidate *models.CandidateEvent, text string) (bool, float64) {
	if c.aiThrottle != nil {
		if _, err := c.aiThrottle.Wait(ctx); err != nil {
			c.logger.Warn("ai throttle interrupted", "error", err)
			return false, 0
		}
	}

	partial, confidence, err := c.ai.Extract(ctx, text, Hints{
		Language: candidate.Language,
		SourceID: candidate.SourceID,
	})
	if err != nil {
		c.logger.Warn("ai extraction failed, keeping prior fields",
			"source", candidate.SourceID,
			"provider", c.ai.Name(),
			"error", err)
		return false, 0
	}

	merged := false
	if candidate.Title == "" && partial.Title != "" {
		candidate.Title = partial.Title
		merged = true
	}
	if candidate.Start == nil && partial.Start != nil {
		candidate.Start = partial.Start
		merged = true
	}
	if candidate.End == nil && partial.End != nil {
		candidate.End = partial.End
		merged = true
	}
	if candidate.RawLocation == "" && partial.Location != "" {
		candidate.RawLocation = partial.Location
		merged = true
	}
	if candidate.RawOrganizer == "" && partial.Organizer != "" {
		candidate.RawOrganizer = partial.Organizer
		merged = true
	}
	if merged {
		candidate.ExtractionMethod = "ai"
	}

	return true, confidence
}

// mergeText fills candidate fields from recognized free text.
func (c *Chain) mergeText(candidate *models.CandidateEvent, text, method string) {
	merged := false

	if candidate.Start == nil {
		if start := scanRecognizedDate(text); start != nil {
			candidate.Start = start
			merged = true
		}
	}
	if candidate.RawLocation == "" {
		if loc := scanLabeledLine(text, "Ort", "Location", "Wo"); loc != "" {
			candidate.RawLocation = loc
			merged = true
		}
	}
	if candidate.Description == "" {
		candidate.Description = text
		merged = true
	}

	if merged {
		candidate.ExtractionMethod = method
	}
}

func (c *Chain) downloadImage(ctx context.Context, url string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	const maxImageBytes = 8 << 20
	buf := make([]byte, 0, 64<<10)
	chunk := make([]byte, 32<<10)
	for len(buf) < maxImageBytes {
		n, err := resp.Body.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			break
		}
	}
	return buf, nil
}

var recognizedDatePattern = regexp.MustCompile(
	`(\d{1,2}\.\d{1,2}\.\d{4}(?:,?\s+\d{1,2}:\d{2})?)|(\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2})?)`)

var recognizedTimePattern = regexp.MustCompile(`\d{1,2}:\d{2}`)

// deriveOCRConfidence combines engine confidence with a structural signal:
// recognized text containing a date or time pattern is much more likely to
// actually be an event poster than arbitrary decoration.
func deriveOCRConfidence(result OCRResult) float64 {
	confidence := result.Confidence
	if recognizedDatePattern.MatchString(result.Text) {
		confidence += 0.15
	}
	if recognizedTimePattern.MatchString(result.Text) {
		confidence += 0.05
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

var recognizedDateFormats = []string{
	"02.01.2006 15:04",
	"02.01.2006, 15:04",
	"02.01.2006",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func scanRecognizedDate(text string) *time.Time {
	token := recognizedDatePattern.FindString(text)
	if token == "" {
		return nil
	}
	for _, format := range recognizedDateFormats {
		if t, err := time.ParseInLocation(format, token, time.Local); err == nil {
			return &t
		}
	}
	return nil
}

func scanLabeledLine(text string, labels ...string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		for _, label := range labels {
			prefix := label + ":"
			if len(line) > len(prefix) && strings.EqualFold(line[:len(prefix)], prefix) {
				return strings.TrimSpace(line[len(prefix):])
			}
		}
	}
	return ""
}
