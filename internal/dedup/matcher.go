package dedup

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/kulturkalender/kulturkalender/internal/config"
	"github.com/kulturkalender/kulturkalender/internal/models"
)

// Component weights of the similarity score. When a component cannot be
// computed for a pair its weight is redistributed over the remaining ones.
const (
	titleWeight   = 0.5
	timeWeight    = 0.3
	spatialWeight = 0.2
)

// Verdict classifies a similarity score against the configured thresholds.
type Verdict int

const (
	// VerdictNew means no existing item resembles the candidate.
	VerdictNew Verdict = iota
	// VerdictReview means the score falls in the ambiguous band: the
	// candidate is kept but flagged for a human decision.
	VerdictReview
	// VerdictDuplicate means the candidate is a repeat sighting.
	VerdictDuplicate
)

func (v Verdict) String() string {
	switch v {
	case VerdictDuplicate:
		return "duplicate"
	case VerdictReview:
		return "review"
	default:
		return "new"
	}
}

// Fields is the comparable projection of an event used for matching.
type Fields struct {
	Title     string
	Start     *time.Time
	Latitude  *float64
	Longitude *float64
}

// FromCandidate projects a scraped candidate.
func FromCandidate(c models.CandidateEvent) Fields {
	return Fields{
		Title:     c.Title,
		Start:     c.Start,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
	}
}

// FromEvent projects a stored event.
func FromEvent(e models.Event) Fields {
	return Fields{
		Title:     e.Title,
		Start:     e.Start,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
	}
}

// Matcher computes weighted pairwise similarity between events.
type Matcher struct {
	cfg config.DedupConfig
}

// NewMatcher creates a matcher with the given thresholds.
func NewMatcher(cfg config.DedupConfig) *Matcher {
	return &Matcher{cfg: cfg}
}

// Similarity returns the weighted score in [0, 1] for a pair.
func (m *Matcher) Similarity(a, b Fields) float64 {
	type component struct {
		score  float64
		weight float64
	}
	var parts []component

	parts = append(parts, component{titleSimilarity(a.Title, b.Title), titleWeight})

	if a.Start != nil && b.Start != nil {
		parts = append(parts, component{timeProximity(*a.Start, *b.Start), timeWeight})
	}
	if a.Latitude != nil && a.Longitude != nil && b.Latitude != nil && b.Longitude != nil {
		distance := haversineMeters(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude)
		parts = append(parts, component{spatialProximity(distance), spatialWeight})
	}

	var weighted, total float64
	for _, p := range parts {
		weighted += p.score * p.weight
		total += p.weight
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// Classify maps a similarity score to a verdict using the configured
// duplicate threshold and review band floor.
func (m *Matcher) Classify(score float64) Verdict {
	switch {
	case score >= m.cfg.Threshold:
		return VerdictDuplicate
	case score >= m.cfg.ReviewBand:
		return VerdictReview
	default:
		return VerdictNew
	}
}

// Match holds the closest existing item for a candidate.
type Match struct {
	Index   int
	Score   float64
	Verdict Verdict
}

// BestMatch scans existing field projections and returns the closest one.
// Index is -1 when existing is empty.
func (m *Matcher) BestMatch(candidate Fields, existing []Fields) Match {
	best := Match{Index: -1}
	for i, fields := range existing {
		score := m.Similarity(candidate, fields)
		if score > best.Score {
			best.Index = i
			best.Score = score
		}
	}
	best.Verdict = m.Classify(best.Score)
	return best
}

// titleSimilarity is a normalized Levenshtein ratio over cleaned titles.
func titleSimilarity(a, b string) float64 {
	a = normalizeTitle(a)
	b = normalizeTitle(b)
	if a == "" && b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func normalizeTitle(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// timeProximity scores start time distance: within two hours counts as the
// same slot, beyond a day as unrelated, linear in between.
func timeProximity(a, b time.Time) float64 {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	const (
		near = 2 * time.Hour
		far  = 24 * time.Hour
	)
	switch {
	case diff <= near:
		return 1
	case diff >= far:
		return 0
	default:
		return 1 - float64(diff-near)/float64(far-near)
	}
}

// spatialProximity scores distance in meters: within 500m counts as the
// same place, beyond 5km as unrelated, linear in between.
func spatialProximity(meters float64) float64 {
	const (
		near = 500.0
		far  = 5000.0
	)
	switch {
	case meters <= near:
		return 1
	case meters >= far:
		return 0
	default:
		return 1 - (meters-near)/(far-near)
	}
}

const earthRadiusMeters = 6371000

// haversineMeters is the great-circle distance between two coordinates.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
