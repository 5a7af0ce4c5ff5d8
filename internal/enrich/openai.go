package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kulturkalender/kulturkalender/internal/config"
	"github.com/kulturkalender/kulturkalender/internal/models"
)

const extractionSystemPrompt = `You extract event announcements from German or English free text.
Respond with a single JSON object:
{"title": string, "start": "YYYY-MM-DDTHH:MM" or null, "end": "YYYY-MM-DDTHH:MM" or null,
 "location": string, "organizer": string, "confidence": number between 0 and 1}
Leave fields empty when the text does not state them. Never invent dates or places.`

// OpenAIExtractor implements AIProvider on top of the OpenAI chat API.
type OpenAIExtractor struct {
	client *openai.Client
	cfg    config.AIConfig
	logger *slog.Logger
}

// NewOpenAIExtractor creates an extractor from the AI configuration.
func NewOpenAIExtractor(cfg config.AIConfig, logger *slog.Logger) (*OpenAIExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key not configured")
	}
	return &OpenAIExtractor{
		client: openai.NewClient(cfg.APIKey),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Name identifies the provider.
func (e *OpenAIExtractor) Name() string { return "openai" }

// extractionResponse is the wire shape the model is instructed to return.
type extractionResponse struct {
	Title      string  `json:"title"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Location   string  `json:"location"`
	Organizer  string  `json:"organizer"`
	Confidence float64 `json:"confidence"`
}

// Extract asks the model for a structured guess over the announcement text.
func (e *OpenAIExtractor) Extract(ctx context.Context, text string, hints Hints) (PartialEvent, float64, error) {
	timeout := time.Duration(e.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	apiCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := text
	if hints.Language != "" {
		prompt = fmt.Sprintf("Source language: %s\n\n%s", hints.Language, text)
	}

	start := time.Now()
	resp, err := e.client.CreateChatCompletion(apiCtx, openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return PartialEvent{}, 0, &models.EnrichmentUnavailable{Provider: e.Name(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return PartialEvent{}, 0, &models.EnrichmentUnavailable{
			Provider: e.Name(),
			Err:      fmt.Errorf("no completion choices returned"),
		}
	}

	var parsed extractionResponse
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return PartialEvent{}, 0, fmt.Errorf("parse extraction response: %w", err)
	}

	partial := PartialEvent{
		Title:     strings.TrimSpace(parsed.Title),
		Location:  strings.TrimSpace(parsed.Location),
		Organizer: strings.TrimSpace(parsed.Organizer),
		Start:     parseModelTime(parsed.Start),
		End:       parseModelTime(parsed.End),
	}

	confidence := parsed.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = heuristicConfidence(partial)
	}

	e.logger.Debug("ai extraction complete",
		"source", hints.SourceID,
		"model", e.cfg.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"confidence", confidence)

	return partial, confidence, nil
}

func parseModelTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil
	}
	for _, layout := range []string{"2006-01-02T15:04", time.RFC3339, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return &t
		}
	}
	return nil
}

// heuristicConfidence fills in when the provider reports none: field
// coverage drives the score.
func heuristicConfidence(p PartialEvent) float64 {
	score := 0.0
	if p.Title != "" {
		score += 0.3
	}
	if p.Start != nil {
		score += 0.3
	}
	if p.Location != "" {
		score += 0.25
	}
	if p.Organizer != "" {
		score += 0.15
	}
	return score
}
