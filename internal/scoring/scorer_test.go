package scoring

import (
	"strings"
	"testing"

	"github.com/kulturkalender/kulturkalender/internal/models"
)

func TestScoreFullAddress(t *testing.T) {
	scorer := NewScorer([]string{"Hof", "Plauen"}, nil)

	cases := []string{
		"Hauptstraße 12, 95028 Hof",
		"Bürgersaal, Ludwigstr. 4, 95028 Hof",
		"Am Theaterring 3a, 95030 Hof",
	}
	for _, text := range cases {
		record := scorer.Score(text, "structured")
		if record.Level != models.ConfidenceHigh {
			t.Errorf("Score(%q) level = %s, want high", text, record.Level)
		}
		if len(record.Notes) != 0 {
			t.Errorf("Score(%q) notes = %v, want none", text, record.Notes)
		}
	}
}

func TestScoreVenueWithCityName(t *testing.T) {
	scorer := NewScorer([]string{"Hof"}, nil)

	record := scorer.Score("Freiheitshalle Hof", "structured")
	if record.Level != models.ConfidenceMedium {
		t.Fatalf("level = %s, want medium", record.Level)
	}
	if len(record.Notes) != 1 || !strings.Contains(record.Notes[0], "venue indicator and city name") {
		t.Errorf("notes = %v, want ambiguity note", record.Notes)
	}
	if !record.NeedsReview() {
		t.Error("medium confidence with notes must need review")
	}
}

func TestScoreVenueWithoutCity(t *testing.T) {
	scorer := NewScorer([]string{"Hof"}, nil)

	record := scorer.Score("Galerie Alte Schmiede", "structured")
	if record.Level != models.ConfidenceMedium {
		t.Fatalf("level = %s, want medium", record.Level)
	}
	if len(record.Notes) != 0 {
		t.Errorf("notes = %v, want none", record.Notes)
	}
}

func TestScoreBareCity(t *testing.T) {
	scorer := NewScorer([]string{"Hof", "Plauen"}, nil)

	record := scorer.Score("Plauen", "structured")
	if record.Level != models.ConfidenceLow {
		t.Errorf("level = %s, want low", record.Level)
	}
}

func TestScoreVagueMultiwordPhrase(t *testing.T) {
	scorer := NewScorer([]string{"Hof"}, nil)

	// Several words without a venue indicator are still vague; a known city
	// token inside the phrase does not make it a venue either.
	for _, text := range []string{"irgendwo in Hof", "auf dem Gelände"} {
		record := scorer.Score(text, "structured")
		if record.Level != models.ConfidenceLow {
			t.Errorf("Score(%q) level = %s, want low", text, record.Level)
		}
	}

	record := scorer.Score("Gasthof Krone", "structured")
	if record.Level != models.ConfidenceMedium {
		t.Errorf("Score(%q) level = %s, want medium", "Gasthof Krone", record.Level)
	}
}

func TestScoreVagueSingleToken(t *testing.T) {
	scorer := NewScorer([]string{"Hof"}, nil)

	record := scorer.Score("Stadtpark", "structured")
	if record.Level != models.ConfidenceLow {
		t.Errorf("level = %s, want low", record.Level)
	}
	if !record.NeedsReview() {
		t.Error("low confidence must need review")
	}
}

func TestScoreEmptyAndPlaceholder(t *testing.T) {
	scorer := NewScorer([]string{"Hof"}, []string{"Hofer Land"})

	for _, text := range []string{"", "   ", "Hofer Land"} {
		record := scorer.Score(text, "structured")
		if record.Level != models.ConfidenceUnknown {
			t.Errorf("Score(%q) level = %s, want unknown", text, record.Level)
		}
	}
}

func TestCityTokenBoundary(t *testing.T) {
	scorer := NewScorer([]string{"Hof"}, nil)

	// "Hof" inside "Bahnhofstraße" is not a city mention.
	record := scorer.Score("Kulturzentrum Bahnhofstraße", "structured")
	if record.Level != models.ConfidenceMedium {
		t.Fatalf("level = %s, want medium", record.Level)
	}
	if len(record.Notes) != 0 {
		t.Errorf("notes = %v, want none for substring city match", record.Notes)
	}
}
