package scoring

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kulturkalender/kulturkalender/internal/models"
)

// Scorer estimates how trustworthy an extracted location is. It is a pure
// rule evaluation over the raw location text plus the configured city list;
// no lookups, no network.
type Scorer struct {
	knownCities  []string
	placeholders []string
}

// NewScorer creates a scorer for the given known city names. Placeholder
// strings are values a source substitutes when it knows nothing, e.g. a
// hardcoded town name in a feed template.
func NewScorer(knownCities, placeholders []string) *Scorer {
	return &Scorer{
		knownCities:  knownCities,
		placeholders: placeholders,
	}
}

var streetPattern = regexp.MustCompile(
	`(?i)[\p{L}\.\-]+(straße|strasse|str\.|weg|platz|gasse|allee|ring|damm)\s*\d{1,4}[a-z]?`)

var postalCodePattern = regexp.MustCompile(`\b\d{5}\b`)

var venueIndicators = []string{
	"halle", "haus", "zentrum", "theater", "kino", "club", "cafe", "café",
	"kirche", "schule", "saal", "hof", "bühne", "museum", "galerie",
	"werkstatt", "bar", "keller", "garten", "arena", "stadion", "center",
}

// Score applies the decision rules in priority order and returns the
// confidence record for the location text.
func (s *Scorer) Score(locationText, extractionMethod string) models.ConfidenceRecord {
	record := models.ConfidenceRecord{
		ExtractionMethod: extractionMethod,
		Timestamp:        time.Now(),
	}

	text := strings.TrimSpace(locationText)

	if text == "" || s.isPlaceholder(text) {
		record.Level = models.ConfidenceUnknown
		if text == "" {
			record.Reason = "no location extractable"
		} else {
			record.Reason = fmt.Sprintf("default location %q substituted by source", text)
		}
		return record
	}

	hasStreet := streetPattern.MatchString(text)
	hasPostal := postalCodePattern.MatchString(text)
	cityToken := s.containedCity(text)

	if hasStreet && hasPostal && cityToken != "" {
		record.Level = models.ConfidenceHigh
		record.Reason = "full street address with postal code and city"
		return record
	}

	if s.isBareCity(text) {
		record.Level = models.ConfidenceLow
		record.Reason = fmt.Sprintf("only a bare city name (%s), no venue", text)
		return record
	}

	if s.looksLikeVenue(text) {
		record.Level = models.ConfidenceMedium
		record.Reason = "venue name without full address"
		// A city token inside a venue string is ambiguous: it may be part
		// of the venue's proper name or a separate city qualifier.
		if cityToken != "" {
			record.Notes = append(record.Notes,
				fmt.Sprintf("contains both venue indicator and city name (%s)", cityToken))
		}
		return record
	}

	record.Level = models.ConfidenceLow
	record.Reason = fmt.Sprintf("location %q too vague to resolve", text)
	return record
}

// isBareCity reports whether the text is exactly one of the known cities.
func (s *Scorer) isBareCity(text string) bool {
	for _, city := range s.knownCities {
		if strings.EqualFold(text, city) {
			return true
		}
	}
	return false
}

// containedCity returns the first known city appearing as a token.
func (s *Scorer) containedCity(text string) string {
	lower := strings.ToLower(text)
	for _, city := range s.knownCities {
		cityLower := strings.ToLower(city)
		idx := strings.Index(lower, cityLower)
		if idx < 0 {
			continue
		}
		// Token boundary check so "Hof" does not match inside "Bahnhofstraße".
		before := idx == 0 || !isWordChar(rune(lower[idx-1]))
		afterIdx := idx + len(cityLower)
		after := afterIdx >= len(lower) || !isWordChar(rune(lower[afterIdx]))
		if before && after {
			return city
		}
	}
	return ""
}

// looksLikeVenue reports whether one of the words carries a venue indicator
// such as "halle" or "galerie". Known city names are skipped so a phrase
// like "irgendwo in Hof" does not read as a venue, and a vague token like
// "Stadtpark" stays unrecognized and scores low.
func (s *Scorer) looksLikeVenue(text string) bool {
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ",.;:()")
		if s.isBareCity(word) {
			continue
		}
		lower := strings.ToLower(word)
		for _, indicator := range venueIndicators {
			if strings.Contains(lower, indicator) {
				return true
			}
		}
	}
	return false
}

func (s *Scorer) isPlaceholder(text string) bool {
	for _, p := range s.placeholders {
		if strings.EqualFold(text, p) {
			return true
		}
	}
	return false
}

func isWordChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
