package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kulturkalender/kulturkalender/internal/config"
	"github.com/kulturkalender/kulturkalender/internal/models"
)

// FeedAdapter fetches event announcements from RSS 2.0 and Atom feeds.
type FeedAdapter struct {
	cfg    config.SourceConfig
	client *http.Client
	logger *slog.Logger
	retry  RetryPolicy
}

// NewFeedAdapter creates a feed adapter for the given source entry.
func NewFeedAdapter(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) *FeedAdapter {
	return &FeedAdapter{
		cfg:    cfg,
		client: client,
		logger: logger,
		retry:  DefaultRetryPolicy(),
	}
}

// Name returns the configured source name.
func (a *FeedAdapter) Name() string { return a.cfg.Name }

// Type returns the adapter family.
func (a *FeedAdapter) Type() config.SourceType { return config.SourceFeed }

// rssFeed represents the RSS 2.0 feed structure.
type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// atomFeed represents the Atom feed structure.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string      `xml:"title"`
	Link      atomLink    `xml:"link"`
	Content   atomContent `xml:"content"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Updated   string      `xml:"updated"`
	ID        string      `xml:"id"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
}

type atomContent struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// Fetch retrieves the feed and converts each item into a candidate draft.
func (a *FeedAdapter) Fetch(ctx context.Context) ([]models.CandidateEvent, error) {
	var userAgent string
	if a.cfg.Feed != nil {
		userAgent = a.cfg.Feed.UserAgent
	}

	var body []byte
	err := Retry(ctx, a.retry, func() error {
		var err error
		body, err = fetchBody(ctx, a.client, a.cfg.URL, userAgent)
		return err
	})
	if err != nil {
		return nil, models.NewFetchError(a.cfg.Name, err)
	}

	items, err := parseFeedItems(body)
	if err != nil {
		return nil, models.NewFetchError(a.cfg.Name, err)
	}

	now := time.Now()
	candidates := make([]models.CandidateEvent, 0, len(items))

	for _, item := range items {
		description := cleanText(item.Description)
		candidate := models.CandidateEvent{
			Title:            cleanText(item.Title),
			Description:      description,
			Start:            scanEventDate(description),
			RawLocation:      labeledFieldValue(description, "Ort", "Location", "Venue"),
			RawOrganizer:     labeledFieldValue(description, "Veranstalter", "Organizer"),
			DetailURL:        item.Link,
			SourceID:         a.cfg.Name,
			FetchedAt:        now,
			ExtractionMethod: "feed",
		}
		if candidate.IsEmpty() {
			a.logger.Debug("skipping feed item without title or date",
				"source", a.cfg.Name,
				"link", item.Link)
			continue
		}
		candidates = append(candidates, candidate)
	}

	filtered := applyFilter(candidates, a.cfg.Filter, now)

	a.logger.Info("feed fetched",
		"source", a.cfg.Name,
		"items", len(items),
		"candidates", len(filtered))

	return filtered, nil
}

// parseFeedItems tries RSS 2.0 first, then Atom, converting Atom entries to
// the RSS item shape for unified processing.
func parseFeedItems(body []byte) ([]rssItem, error) {
	var rss rssFeed
	rssErr := xml.Unmarshal(body, &rss)
	if rssErr == nil && len(rss.Channel.Items) > 0 {
		return rss.Channel.Items, nil
	}

	var atom atomFeed
	atomErr := xml.Unmarshal(body, &atom)
	if atomErr == nil && len(atom.Entries) > 0 {
		items := make([]rssItem, 0, len(atom.Entries))
		for _, entry := range atom.Entries {
			description := entry.Content.Value
			if description == "" {
				description = entry.Summary
			}
			items = append(items, rssItem{
				Title:       entry.Title,
				Link:        entry.Link.Href,
				Description: description,
				PubDate:     entry.Published,
				GUID:        entry.ID,
			})
		}
		return items, nil
	}

	if rssErr != nil || atomErr != nil {
		return nil, fmt.Errorf("parse as RSS (%v) or Atom (%v) failed", rssErr, atomErr)
	}
	return nil, fmt.Errorf("feed parsed but contains no items")
}
