package sources

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/kulturkalender/kulturkalender/internal/config"
	"github.com/kulturkalender/kulturkalender/internal/models"
)

// HTMLAdapter scrapes event listing pages. Listing items are located by CSS
// class names from the source options, so a new page layout is a config
// change, not a code change.
type HTMLAdapter struct {
	cfg    config.SourceConfig
	client *http.Client
	logger *slog.Logger
	retry  RetryPolicy
}

// NewHTMLAdapter creates an HTML listing adapter for the given source entry.
func NewHTMLAdapter(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) *HTMLAdapter {
	return &HTMLAdapter{
		cfg:    cfg,
		client: client,
		logger: logger,
		retry:  DefaultRetryPolicy(),
	}
}

// Name returns the configured source name.
func (a *HTMLAdapter) Name() string { return a.cfg.Name }

// Type returns the adapter family.
func (a *HTMLAdapter) Type() config.SourceType { return config.SourceHTML }

// Fetch retrieves the listing page and converts each item node into a
// candidate draft.
func (a *HTMLAdapter) Fetch(ctx context.Context) ([]models.CandidateEvent, error) {
	var body []byte
	err := Retry(ctx, a.retry, func() error {
		var err error
		body, err = fetchBody(ctx, a.client, a.cfg.URL, "")
		return err
	})
	if err != nil {
		return nil, models.NewFetchError(a.cfg.Name, err)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, models.NewFetchError(a.cfg.Name, err)
	}

	opts := a.cfg.HTML
	now := time.Now()

	items := nodesByClass(doc, opts.ItemClass)
	candidates := make([]models.CandidateEvent, 0, len(items))

	for _, item := range items {
		candidate := models.CandidateEvent{
			Title:            textByClass(item, opts.TitleClass),
			RawLocation:      textByClass(item, opts.LocationClass),
			DetailURL:        firstHref(item),
			SourceID:         a.cfg.Name,
			FetchedAt:        now,
			ExtractionMethod: "html",
		}

		if dateText := textByClass(item, opts.DateClass); dateText != "" {
			candidate.Start = parseListingDate(dateText, opts.DateFormat)
		}
		if candidate.Title == "" {
			candidate.Title = strings.TrimSpace(nodeText(item))
		}
		if candidate.IsEmpty() {
			continue
		}

		candidates = append(candidates, candidate)
	}

	filtered := applyFilter(candidates, a.cfg.Filter, now)

	a.logger.Info("html listing fetched",
		"source", a.cfg.Name,
		"items", len(items),
		"candidates", len(filtered))

	return filtered, nil
}

// parseListingDate parses with the configured layout first, then falls back
// to the shared free-text scan.
func parseListingDate(text, layout string) *time.Time {
	text = strings.TrimSpace(text)
	if layout != "" {
		if t, err := time.ParseInLocation(layout, text, time.Local); err == nil {
			return &t
		}
	}
	return scanEventDate(text)
}

// nodesByClass collects all element nodes carrying the given class.
func nodesByClass(root *html.Node, class string) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, class) {
			found = append(found, n)
			return // do not descend into matched items
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

// textByClass returns the concatenated text of the first node with the class.
func textByClass(root *html.Node, class string) string {
	if class == "" {
		return ""
	}
	nodes := nodesByClass(root, class)
	if len(nodes) == 0 {
		return ""
	}
	return strings.TrimSpace(nodeText(nodes[0]))
}

// nodeText concatenates all text content below the node.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// firstHref returns the href of the first anchor below the node.
func firstHref(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, attr := range n.Attr {
			if attr.Key == "href" {
				return attr.Val
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href := firstHref(c); href != "" {
			return href
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	if class == "" {
		return false
	}
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}
