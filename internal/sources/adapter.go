package sources

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/kulturkalender/kulturkalender/internal/config"
	"github.com/kulturkalender/kulturkalender/internal/models"
)

// Adapter turns source-specific structure (feed XML, HTML DOM, JSON payload,
// social post) into CandidateEvent drafts. Adapters assign no identity and
// resolve no entities; they may emit attached image URIs for the enrichment
// chain but never run OCR or AI themselves.
type Adapter interface {
	// Name returns the configured source name.
	Name() string

	// Type returns the adapter family.
	Type() config.SourceType

	// Fetch retrieves and parses the source. Failures are *models.FetchError;
	// the pipeline skips the source and continues the batch.
	Fetch(ctx context.Context) ([]models.CandidateEvent, error)
}

// New builds the adapter for a source entry. The config has already been
// validated, so an unknown type here is a programming error.
func New(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) (Adapter, error) {
	switch cfg.Type {
	case config.SourceFeed:
		return NewFeedAdapter(cfg, client, logger), nil
	case config.SourceHTML:
		return NewHTMLAdapter(cfg, client, logger), nil
	case config.SourceJSONAPI:
		return NewJSONAPIAdapter(cfg, client, logger), nil
	case config.SourceSocial:
		return NewSocialAdapter(cfg, client, logger), nil
	default:
		return nil, fmt.Errorf("no adapter for source type %q", cfg.Type)
	}
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// fetchBody performs a GET with the shared client and returns the body.
func fetchBody(ctx context.Context, client *http.Client, url, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// applyFilter drops candidates excluded by the per-source keyword and
// horizon filters.
func applyFilter(candidates []models.CandidateEvent, filter config.FilterOptions, now time.Time) []models.CandidateEvent {
	kept := make([]models.CandidateEvent, 0, len(candidates))

	for _, c := range candidates {
		text := strings.ToLower(c.Title + " " + c.Description)

		if len(filter.IncludeKeywords) > 0 && !containsAny(text, filter.IncludeKeywords) {
			continue
		}
		if containsAny(text, filter.ExcludeKeywords) {
			continue
		}
		if filter.MaxDaysAhead > 0 && c.Start != nil {
			horizon := now.AddDate(0, 0, filter.MaxDaysAhead)
			if c.Start.After(horizon) {
				continue
			}
		}

		kept = append(kept, c)
	}

	return kept
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// cleanText removes HTML tags and collapses whitespace.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "<p>", "\n")
	text = strings.ReplaceAll(text, "</p>", "\n")
	text = strings.ReplaceAll(text, "<br>", "\n")
	text = strings.ReplaceAll(text, "<br/>", "\n")
	text = strings.ReplaceAll(text, "<br />", "\n")

	for {
		start := strings.Index(text, "<")
		if start == -1 {
			break
		}
		end := strings.Index(text[start:], ">")
		if end == -1 {
			break
		}
		text = text[:start] + text[start+end+1:]
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(text)
}

// eventDatePattern matches German-style "15.06.2026 20:00" and "15.06.2026"
// plus ISO "2026-06-15T20:00" and "2026-06-15 20:00" datestamps in free text.
var eventDatePattern = regexp.MustCompile(
	`(\d{1,2}\.\d{1,2}\.\d{4}(?:,?\s+\d{1,2}:\d{2})?)|(\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2})?)?)`)

var eventDateFormats = []string{
	"02.01.2006 15:04",
	"02.01.2006, 15:04",
	"02.01.2006",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// scanEventDate finds the first date-like token in free text and parses it.
// Returns nil when no token parses; ambiguity is left to later stages.
func scanEventDate(text string) *time.Time {
	token := eventDatePattern.FindString(text)
	if token == "" {
		return nil
	}
	for _, format := range eventDateFormats {
		if t, err := time.ParseInLocation(format, token, time.Local); err == nil {
			return &t
		}
	}
	return nil
}

// labeledFieldValue extracts "Ort: Stadthalle" style values from announcement
// text. Labels are matched case-insensitively at line starts.
func labeledFieldValue(text string, labels ...string) string {
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
