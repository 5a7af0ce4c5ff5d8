package sources

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kulturkalender/kulturkalender/internal/config"
	"github.com/kulturkalender/kulturkalender/internal/models"
)

// SocialAdapter ingests social-media posts with attached images. Posts are
// mostly free text; the adapter only carries the text and image URIs forward
// so the enrichment chain can run OCR and AI extraction on them.
type SocialAdapter struct {
	cfg    config.SourceConfig
	client *http.Client
	logger *slog.Logger
	retry  RetryPolicy
}

// NewSocialAdapter creates a social-post adapter for the given source entry.
func NewSocialAdapter(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) *SocialAdapter {
	return &SocialAdapter{
		cfg:    cfg,
		client: client,
		logger: logger,
		retry:  DefaultRetryPolicy(),
	}
}

// Name returns the configured source name.
func (a *SocialAdapter) Name() string { return a.cfg.Name }

// Type returns the adapter family.
func (a *SocialAdapter) Type() config.SourceType { return config.SourceSocial }

// socialPost is the wire shape of a post as delivered by the bridge endpoint.
type socialPost struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	CreatedAt string   `json:"created_at"`
	Account   string   `json:"account"`
	Images    []string `json:"images"`
	Permalink string   `json:"permalink"`
}

// Fetch retrieves recent posts and converts them into candidate drafts.
func (a *SocialAdapter) Fetch(ctx context.Context) ([]models.CandidateEvent, error) {
	var body []byte
	err := Retry(ctx, a.retry, func() error {
		var err error
		body, err = fetchBody(ctx, a.client, a.cfg.URL, "")
		return err
	})
	if err != nil {
		return nil, models.NewFetchError(a.cfg.Name, err)
	}

	var posts []socialPost
	if err := json.Unmarshal(body, &posts); err != nil {
		return nil, models.NewFetchError(a.cfg.Name, err)
	}

	opts := a.cfg.Social
	now := time.Now()
	candidates := make([]models.CandidateEvent, 0, len(posts))

	for _, post := range posts {
		if opts != nil && opts.Account != "" && !strings.EqualFold(post.Account, opts.Account) {
			continue
		}

		text := cleanText(post.Text)
		candidate := models.CandidateEvent{
			Title:            firstLine(text),
			Description:      text,
			Start:            scanEventDate(text),
			RawLocation:      labeledFieldValue(text, "Ort", "Location", "Wo"),
			RawOrganizer:     post.Account,
			DetailURL:        post.Permalink,
			SourceID:         a.cfg.Name,
			FetchedAt:        now,
			ExtractionMethod: "social",
		}
		if opts != nil {
			candidate.Language = opts.Language
			if opts.WithImages {
				candidate.ImageURLs = post.Images
			}
		}
		if candidate.IsEmpty() && len(candidate.ImageURLs) == 0 {
			a.logger.Debug("skipping post without text or images",
				"source", a.cfg.Name,
				"post_id", post.ID)
			continue
		}
		candidates = append(candidates, candidate)
	}

	filtered := applyFilter(candidates, a.cfg.Filter, now)

	a.logger.Info("social posts fetched",
		"source", a.cfg.Name,
		"posts", len(posts),
		"candidates", len(filtered))

	return filtered, nil
}

// firstLine returns the first non-empty line, shortened to a title length.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if runes := []rune(line); len(runes) > 120 {
			return string(runes[:117]) + "..."
		}
		return line
	}
	return ""
}
