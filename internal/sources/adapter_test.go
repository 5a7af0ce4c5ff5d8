package sources

import (
	"testing"
	"time"

	"github.com/kulturkalender/kulturkalender/internal/config"
	"github.com/kulturkalender/kulturkalender/internal/models"
)

func TestScanEventDate(t *testing.T) {
	tests := []struct {
		text string
		want *time.Time
	}{
		{
			text: "Konzert am 15.06.2026 20:00 im Stadtpark",
			want: timePtr(time.Date(2026, 6, 15, 20, 0, 0, 0, time.Local)),
		},
		{
			text: "Beginn: 15.06.2026",
			want: timePtr(time.Date(2026, 6, 15, 0, 0, 0, 0, time.Local)),
		},
		{
			text: "starts 2026-06-15T20:00 sharp",
			want: timePtr(time.Date(2026, 6, 15, 20, 0, 0, 0, time.Local)),
		},
		{
			text: "kein Datum hier",
			want: nil,
		},
	}

	for _, tt := range tests {
		got := scanEventDate(tt.text)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("scanEventDate(%q) = %v, want nil", tt.text, got)
		case tt.want != nil && (got == nil || !got.Equal(*tt.want)):
			t.Errorf("scanEventDate(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestLabeledFieldValue(t *testing.T) {
	text := "Sommerkonzert\nOrt: Freiheitshalle Hof\nVeranstalter: Kulturverein Hof e.V.\n"

	if got := labeledFieldValue(text, "Ort", "Location"); got != "Freiheitshalle Hof" {
		t.Errorf("Ort = %q", got)
	}
	if got := labeledFieldValue(text, "Veranstalter"); got != "Kulturverein Hof e.V." {
		t.Errorf("Veranstalter = %q", got)
	}
	if got := labeledFieldValue(text, "Eintritt"); got != "" {
		t.Errorf("missing label = %q, want empty", got)
	}
}

func TestCleanText(t *testing.T) {
	in := "<p>Sommerkonzert</p><p>Ort: <b>Stadtpark</b></p>"
	want := "Sommerkonzert\n\nOrt: Stadtpark"
	if got := cleanText(in); got != want {
		t.Errorf("cleanText = %q, want %q", got, want)
	}
}

func TestApplyFilterKeywords(t *testing.T) {
	candidates := []models.CandidateEvent{
		{Title: "Sommerkonzert im Stadtpark"},
		{Title: "Gewinnspiel: Jetzt mitmachen"},
		{Title: "Flohmarkt am Rathaus"},
	}

	filtered := applyFilter(candidates, config.FilterOptions{
		ExcludeKeywords: []string{"gewinnspiel"},
	}, time.Now())
	if len(filtered) != 2 {
		t.Fatalf("exclude filter kept %d candidates, want 2", len(filtered))
	}

	filtered = applyFilter(candidates, config.FilterOptions{
		IncludeKeywords: []string{"konzert"},
	}, time.Now())
	if len(filtered) != 1 || filtered[0].Title != "Sommerkonzert im Stadtpark" {
		t.Fatalf("include filter result = %v", filtered)
	}
}

func TestApplyFilterHorizon(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.Local)
	soon := now.AddDate(0, 0, 10)
	far := now.AddDate(0, 0, 200)
	candidates := []models.CandidateEvent{
		{Title: "Bald", Start: &soon},
		{Title: "Fern", Start: &far},
		{Title: "Ohne Datum"},
	}

	filtered := applyFilter(candidates, config.FilterOptions{MaxDaysAhead: 90}, now)
	if len(filtered) != 2 {
		t.Fatalf("horizon filter kept %d, want 2", len(filtered))
	}
	for _, c := range filtered {
		if c.Title == "Fern" {
			t.Error("candidate beyond the horizon survived the filter")
		}
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(config.SourceConfig{Name: "x", Type: "carrier-pigeon", URL: "http://example.com"}, nil, nil)
	if err == nil {
		t.Fatal("unknown source type must be rejected")
	}
}

func timePtr(t time.Time) *time.Time { return &t }
