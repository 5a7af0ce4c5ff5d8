package pipeline

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kulturkalender/kulturkalender/internal/config"
	"github.com/kulturkalender/kulturkalender/internal/models"
	"github.com/kulturkalender/kulturkalender/internal/resolve"
	"github.com/kulturkalender/kulturkalender/internal/store"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func jsonSource(name, url string) config.SourceConfig {
	return config.SourceConfig{
		Name:    name,
		Type:    config.SourceJSONAPI,
		URL:     url,
		Enabled: true,
		JSONAPI: &config.JSONAPIOptions{
			TitleField:     "title",
			StartField:     "start",
			LocationField:  "location",
			OrganizerField: "organizer",
			TimeFormat:     time.RFC3339,
		},
	}
}

func testPipeline(t *testing.T, cfg *config.Config) (*Pipeline, *store.Store) {
	t.Helper()
	logger := discard()
	s := store.New(t.TempDir(), logger)
	resolver := resolve.NewResolver(s, cfg.Resolve, logger)
	p := New(cfg, s, nil, resolver, nil, &http.Client{Timeout: 5 * time.Second}, logger)
	return p, s
}

func baseConfig(srcs ...config.SourceConfig) *config.Config {
	cfg := config.Default()
	cfg.KnownCities = []string{"Hof", "Plauen"}
	cfg.Sources = srcs
	return &cfg
}

func TestRunStagesNewCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"title": "Sommerkonzert im Stadtpark", "start": "2026-06-15T20:00:00+02:00",
			 "location": "Stadtpark", "organizer": "Kulturverein Hof"},
			{"title": "Flohmarkt am Rathaus", "start": "2026-07-04T09:00:00+02:00",
			 "location": "Rathausplatz 1, 95028 Hof"}
		]`))
	}))
	defer server.Close()

	p, s := testPipeline(t, baseConfig(jsonSource("stadt-api", server.URL)))

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(report.Sources))
	}
	sr := report.Sources[0]
	if sr.Fetched != 2 || sr.New != 2 || sr.Err != nil {
		t.Fatalf("report = %+v, want 2 fetched, 2 new", sr)
	}

	pending, _ := s.Pending()
	if len(pending) != 2 {
		t.Fatalf("pending = %d items, want 2", len(pending))
	}
	for _, item := range pending {
		if item.Status != models.StatusPending || item.Kind != models.KindEvent {
			t.Errorf("item %s: status %s kind %s", item.ID, item.Status, item.Kind)
		}
		if len(item.Provenance) != 1 || item.Provenance[0].SourceID != "stadt-api" {
			t.Errorf("item %s provenance = %v", item.ID, item.Provenance)
		}
	}
}

func TestVagueLocationIsStagedForReview(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"title": "Konzert im Park", "start": "2026-06-15T20:00:00+02:00",
			"location": "Stadtpark"}]`))
	}))
	defer server.Close()

	p, s := testPipeline(t, baseConfig(jsonSource("stadt-api", server.URL)))
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	pending, _ := s.Pending()
	if len(pending) != 1 {
		t.Fatalf("pending = %d items", len(pending))
	}
	item := pending[0]
	if item.Confidence.Level != models.ConfidenceLow {
		t.Errorf("confidence = %s, want low", item.Confidence.Level)
	}
	if !item.NeedsReview {
		t.Error("low-confidence item must need review")
	}
}

func TestRepeatSightingIsAbsorbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"title": "Sommerkonzert im Stadtpark",
			"start": "2026-06-15T20:00:00+02:00", "location": "Stadtpark"}]`))
	}))
	defer server.Close()

	p, s := testPipeline(t, baseConfig(jsonSource("stadt-api", server.URL)))
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	sr := report.Sources[0]
	if sr.New != 0 || sr.Duplicates != 1 {
		t.Fatalf("second run report = %+v, want pure duplicate", sr)
	}

	pending, _ := s.Pending()
	if len(pending) != 1 {
		t.Fatalf("pending = %d items after repeat run, want 1", len(pending))
	}
	if len(pending[0].Provenance) != 1 {
		t.Errorf("provenance = %v, want single bumped entry", pending[0].Provenance)
	}
}

func TestDuplicateBackfillsEmptyFields(t *testing.T) {
	first := `[{"title": "Sommerkonzert im Stadtpark", "start": "2026-06-15T20:00:00+02:00",
		"location": "Stadtpark"}]`
	second := `[{"title": "Sommerkonzert im Stadtpark", "start": "2026-06-15T20:00:00+02:00",
		"location": "Stadtpark", "description": "Open-Air mit der Stadtkapelle",
		"url": "https://stadt.example/konzert"}]`
	payload := first
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer server.Close()

	p, s := testPipeline(t, baseConfig(jsonSource("stadt-api", server.URL)))
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	payload = second
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	pending, _ := s.Pending()
	if len(pending) != 1 {
		t.Fatalf("pending = %d items", len(pending))
	}
	event := pending[0].Event
	if event.Description != "Open-Air mit der Stadtkapelle" {
		t.Errorf("description = %q, not backfilled", event.Description)
	}
	if event.DetailURL != "https://stadt.example/konzert" {
		t.Errorf("detail url = %q, not backfilled", event.DetailURL)
	}
}

func TestAmbiguousMatchIsStagedAndFlagged(t *testing.T) {
	// Same title, start 13 hours apart, no coordinates: lands in the review
	// band between the thresholds.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"title": "Stadtfest Hof", "start": "2026-07-10T10:00:00+02:00", "location": "Altstadt"},
			{"title": "Stadtfest Hof", "start": "2026-07-10T23:00:00+02:00", "location": "Altstadt"}
		]`))
	}))
	defer server.Close()

	p, s := testPipeline(t, baseConfig(jsonSource("stadt-api", server.URL)))
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	sr := report.Sources[0]
	if sr.New != 2 {
		t.Fatalf("report = %+v, want both staged", sr)
	}

	pending, _ := s.Pending()
	if len(pending) != 2 {
		t.Fatalf("pending = %d items, want 2", len(pending))
	}
	flagged := pending[1]
	if !flagged.NeedsReview {
		t.Fatal("ambiguous second item must need review")
	}
	foundNote := false
	for _, note := range flagged.ReviewNotes {
		if strings.Contains(note, "ambiguous match") {
			foundNote = true
		}
	}
	if !foundNote {
		t.Errorf("review notes = %v, want ambiguous-match note", flagged.ReviewNotes)
	}
}

func TestSameEventFromTwoSourcesMergesProvenance(t *testing.T) {
	payload := `[{"title": "Sommerkonzert im Stadtpark", "start": "2026-06-15T20:00:00+02:00",
		"location": "Stadtpark", "lat": 50.3167, "lon": 11.9167}]`
	feedA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer feedA.Close()
	feedB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer feedB.Close()

	p, s := testPipeline(t, baseConfig(
		jsonSource("stadt-api", feedA.URL),
		jsonSource("kultur-api", feedB.URL),
	))

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.TotalNew() != 1 {
		t.Fatalf("report = %+v, want one staged item across both sources", report.Sources)
	}

	pending, _ := s.Pending()
	if len(pending) != 1 {
		t.Fatalf("pending = %d items, want 1", len(pending))
	}
	prov := pending[0].Provenance
	if len(prov) != 2 {
		t.Fatalf("provenance = %v, want entries from both sources", prov)
	}
	sources := map[string]bool{}
	for _, entry := range prov {
		sources[entry.SourceID] = true
	}
	if !sources["stadt-api"] || !sources["kultur-api"] {
		t.Errorf("provenance sources = %v", prov)
	}
}

func TestPublishedSightingIsPersisted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"title": "Sommerkonzert im Stadtpark",
			"start": "2026-06-15T20:00:00+02:00", "location": "Stadtpark"}]`))
	}))
	defer server.Close()

	p, s := testPipeline(t, baseConfig(jsonSource("stadt-api", server.URL)))
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	pending, _ := s.Pending()
	if _, err := s.Approve(pending[0].ID); err != nil {
		t.Fatal(err)
	}

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	sr := report.Sources[0]
	if sr.New != 0 || sr.Duplicates != 1 {
		t.Fatalf("report after approve = %+v, want absorbed duplicate", sr)
	}

	published, _ := s.Published()
	if len(published) != 1 {
		t.Fatalf("published = %d events", len(published))
	}
	found := false
	for _, entry := range published[0].Provenance {
		if entry.SourceID == "stadt-api" {
			found = true
		}
	}
	if !found {
		t.Errorf("published provenance = %v, want recorded sighting", published[0].Provenance)
	}
	pending, _ = s.Pending()
	if len(pending) != 0 {
		t.Error("published announcement re-entered the queue")
	}
}

func TestSettledItemsAreNotResurrected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"title": "Werbeveranstaltung XXL", "start": "2026-06-20T18:00:00+02:00",
			"location": "Messehalle"}]`))
	}))
	defer server.Close()

	p, s := testPipeline(t, baseConfig(jsonSource("stadt-api", server.URL)))
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	pending, _ := s.Pending()
	if _, err := s.Reject(pending[0].ID, "commercial"); err != nil {
		t.Fatal(err)
	}

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	sr := report.Sources[0]
	if sr.New != 0 || sr.Duplicates != 1 {
		t.Fatalf("report after reject = %+v, want absorbed duplicate", sr)
	}
	pending, _ = s.Pending()
	if len(pending) != 0 {
		t.Error("rejected announcement re-entered the queue")
	}
	trash, _ := s.Trash()
	if len(trash) != 1 || trash[0].Status != models.StatusRejected {
		t.Errorf("trash = %v, want untouched rejected item", trash)
	}
	// The repeat sighting lands in the trashed item's provenance on disk.
	found := false
	for _, entry := range trash[0].Provenance {
		if entry.SourceID == "stadt-api" && entry.LastSeen.After(entry.FirstSeen) {
			found = true
		}
	}
	if !found {
		t.Errorf("trash provenance = %v, want bumped sighting", trash[0].Provenance)
	}
}

func TestFailingSourceDoesNotBlockOthers(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"title": "Lesung in der Stadtbibliothek",
			"start": "2026-06-18T19:00:00+02:00", "location": "Stadtbibliothek Hof"}]`))
	}))
	defer working.Close()

	p, s := testPipeline(t, baseConfig(
		jsonSource("broken-api", broken.URL),
		jsonSource("stadt-api", working.URL),
	))

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run must contain source failures: %v", err)
	}
	if len(report.Failed()) != 1 || report.Failed()[0].Source != "broken-api" {
		t.Fatalf("failed = %+v, want only broken-api", report.Failed())
	}
	if !models.IsFetchError(report.Failed()[0].Err) {
		t.Errorf("error = %v, want FetchError", report.Failed()[0].Err)
	}

	pending, _ := s.Pending()
	if len(pending) != 1 {
		t.Errorf("pending = %d items, want the working source's item", len(pending))
	}
}

func TestDisabledSourcesAreSkipped(t *testing.T) {
	src := jsonSource("stadt-api", "http://127.0.0.1:1/unreachable")
	src.Enabled = false

	p, _ := testPipeline(t, baseConfig(src))
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Sources) != 0 {
		t.Errorf("report covers %d sources, want 0", len(report.Sources))
	}
}
