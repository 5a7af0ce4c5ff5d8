package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kulturkalender/kulturkalender/internal/config"
	"github.com/kulturkalender/kulturkalender/internal/models"
)

// JSONAPIAdapter fetches event lists from JSON endpoints. The field mapping
// lives in the source options, so differently shaped APIs share one adapter.
type JSONAPIAdapter struct {
	cfg    config.SourceConfig
	client *http.Client
	logger *slog.Logger
	retry  RetryPolicy
}

// NewJSONAPIAdapter creates a JSON API adapter for the given source entry.
func NewJSONAPIAdapter(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) *JSONAPIAdapter {
	return &JSONAPIAdapter{
		cfg:    cfg,
		client: client,
		logger: logger,
		retry:  DefaultRetryPolicy(),
	}
}

// Name returns the configured source name.
func (a *JSONAPIAdapter) Name() string { return a.cfg.Name }

// Type returns the adapter family.
func (a *JSONAPIAdapter) Type() config.SourceType { return config.SourceJSONAPI }

// Fetch retrieves the endpoint and maps each payload item onto a candidate.
func (a *JSONAPIAdapter) Fetch(ctx context.Context) ([]models.CandidateEvent, error) {
	var body []byte
	err := Retry(ctx, a.retry, func() error {
		var err error
		body, err = fetchBody(ctx, a.client, a.cfg.URL, "")
		return err
	})
	if err != nil {
		return nil, models.NewFetchError(a.cfg.Name, err)
	}

	items, err := decodeItems(body, a.cfg.JSONAPI.ItemsField)
	if err != nil {
		return nil, models.NewFetchError(a.cfg.Name, err)
	}

	opts := a.cfg.JSONAPI
	now := time.Now()
	candidates := make([]models.CandidateEvent, 0, len(items))

	for _, item := range items {
		candidate := models.CandidateEvent{
			Title:            stringField(item, opts.TitleField),
			Description:      stringField(item, "description"),
			RawLocation:      stringField(item, opts.LocationField),
			RawOrganizer:     stringField(item, opts.OrganizerField),
			DetailURL:        stringField(item, "url"),
			Start:            timeField(item, opts.StartField, opts.TimeFormat),
			End:              timeField(item, opts.EndField, opts.TimeFormat),
			Latitude:         floatField(item, "lat"),
			Longitude:        floatField(item, "lon"),
			SourceID:         a.cfg.Name,
			FetchedAt:        now,
			ExtractionMethod: "jsonapi",
		}
		if candidate.IsEmpty() {
			continue
		}
		candidates = append(candidates, candidate)
	}

	filtered := applyFilter(candidates, a.cfg.Filter, now)

	a.logger.Info("json api fetched",
		"source", a.cfg.Name,
		"items", len(items),
		"candidates", len(filtered))

	return filtered, nil
}

// decodeItems accepts either a top-level array or an object with the items
// under itemsField.
func decodeItems(body []byte, itemsField string) ([]map[string]any, error) {
	var direct []map[string]any
	if err := json.Unmarshal(body, &direct); err == nil {
		return direct, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("payload is neither an array nor an object: %w", err)
	}

	if itemsField == "" {
		itemsField = "items"
	}
	raw, ok := wrapped[itemsField]
	if !ok {
		return nil, fmt.Errorf("payload has no %q field", itemsField)
	}

	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %q: %w", itemsField, err)
	}
	return items, nil
}

func stringField(item map[string]any, field string) string {
	if field == "" {
		return ""
	}
	if v, ok := item[field].(string); ok {
		return v
	}
	return ""
}

func floatField(item map[string]any, field string) *float64 {
	if v, ok := item[field].(float64); ok {
		return &v
	}
	return nil
}

func timeField(item map[string]any, field, layout string) *time.Time {
	raw := stringField(item, field)
	if raw == "" {
		return nil
	}
	layouts := []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"}
	if layout != "" {
		layouts = append([]string{layout}, layouts...)
	}
	for _, l := range layouts {
		if t, err := time.ParseInLocation(l, raw, time.Local); err == nil {
			return &t
		}
	}
	return nil
}
