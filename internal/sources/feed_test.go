package sources

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kulturkalender/kulturkalender/internal/config"
	"github.com/kulturkalender/kulturkalender/internal/models"
)

const rssPayload = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Veranstaltungen</title>
    <item>
      <title>Sommerkonzert im Stadtpark</title>
      <link>https://stadt.example/konzert</link>
      <description>&lt;p&gt;Open-Air am 15.06.2026 20:00&lt;/p&gt;&lt;p&gt;Ort: Stadtpark&lt;/p&gt;&lt;p&gt;Veranstalter: Stadtkapelle&lt;/p&gt;</description>
    </item>
    <item>
      <title>Gewinnspiel der Woche</title>
      <link>https://stadt.example/gewinnspiel</link>
      <description>Jetzt mitmachen</description>
    </item>
  </channel>
</rss>`

const atomPayload = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Veranstaltungen</title>
  <entry>
    <title>Lesung in der Stadtbibliothek</title>
    <link href="https://stadt.example/lesung"/>
    <summary>Am 18.06.2026 19:00
Ort: Stadtbibliothek</summary>
    <id>urn:lesung</id>
  </entry>
</feed>`

func feedAdapter(t *testing.T, url string, filter config.FilterOptions) *FeedAdapter {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := NewFeedAdapter(config.SourceConfig{
		Name:    "stadt-feed",
		Type:    config.SourceFeed,
		URL:     url,
		Enabled: true,
		Filter:  filter,
	}, &http.Client{Timeout: 5 * time.Second}, logger)
	a.retry = RetryPolicy{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffFactor: 1}
	return a
}

func TestFeedFetchRSS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssPayload))
	}))
	defer server.Close()

	a := feedAdapter(t, server.URL, config.FilterOptions{})
	candidates, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(candidates))
	}

	c := candidates[0]
	if c.Title != "Sommerkonzert im Stadtpark" {
		t.Errorf("title = %q", c.Title)
	}
	want := time.Date(2026, 6, 15, 20, 0, 0, 0, time.Local)
	if c.Start == nil || !c.Start.Equal(want) {
		t.Errorf("start = %v, want %v", c.Start, want)
	}
	if c.RawLocation != "Stadtpark" {
		t.Errorf("raw location = %q", c.RawLocation)
	}
	if c.RawOrganizer != "Stadtkapelle" {
		t.Errorf("raw organizer = %q", c.RawOrganizer)
	}
	if c.DetailURL != "https://stadt.example/konzert" {
		t.Errorf("detail url = %q", c.DetailURL)
	}
	if c.ExtractionMethod != "feed" || c.SourceID != "stadt-feed" {
		t.Errorf("provenance = %q/%q", c.ExtractionMethod, c.SourceID)
	}
}

func TestFeedFetchAtomFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(atomPayload))
	}))
	defer server.Close()

	a := feedAdapter(t, server.URL, config.FilterOptions{})
	candidates, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	if candidates[0].Title != "Lesung in der Stadtbibliothek" {
		t.Errorf("title = %q", candidates[0].Title)
	}
	if candidates[0].RawLocation != "Stadtbibliothek" {
		t.Errorf("raw location = %q", candidates[0].RawLocation)
	}
}

func TestFeedFetchAppliesFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssPayload))
	}))
	defer server.Close()

	a := feedAdapter(t, server.URL, config.FilterOptions{ExcludeKeywords: []string{"gewinnspiel"}})
	candidates, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d after exclude filter, want 1", len(candidates))
	}
}

func TestFeedFetchWrapsErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	a := feedAdapter(t, server.URL, config.FilterOptions{})
	_, err := a.Fetch(context.Background())
	if !models.IsFetchError(err) {
		t.Fatalf("error = %v, want FetchError", err)
	}

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not xml at all"))
	}))
	defer garbage.Close()

	a = feedAdapter(t, garbage.URL, config.FilterOptions{})
	_, err = a.Fetch(context.Background())
	if !models.IsFetchError(err) {
		t.Fatalf("parse error = %v, want FetchError", err)
	}
}
