package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kulturkalender/kulturkalender/internal/config"
	"github.com/kulturkalender/kulturkalender/internal/dedup"
	"github.com/kulturkalender/kulturkalender/internal/enrich"
	"github.com/kulturkalender/kulturkalender/internal/metrics"
	"github.com/kulturkalender/kulturkalender/internal/models"
	"github.com/kulturkalender/kulturkalender/internal/resolve"
	"github.com/kulturkalender/kulturkalender/internal/scoring"
	"github.com/kulturkalender/kulturkalender/internal/sources"
	"github.com/kulturkalender/kulturkalender/internal/store"
)

// Pipeline drives one scrape run: fetch per source, enrich, score, dedup,
// resolve, stage. Sources are processed sequentially and committed one at a
// time, so an interruption never leaves a half-written source behind.
type Pipeline struct {
	cfg       *config.Config
	store     *store.Store
	chain     *enrich.Chain
	scorer    *scoring.Scorer
	matcher   *dedup.Matcher
	resolver  *resolve.Resolver
	collector *metrics.PipelineCollector
	client    *http.Client
	logger    *slog.Logger
	now       func() time.Time
}

// New wires a pipeline. The enrichment chain and the metrics collector may
// be nil; both passes are then skipped.
func New(cfg *config.Config, s *store.Store, chain *enrich.Chain, resolver *resolve.Resolver,
	collector *metrics.PipelineCollector, client *http.Client, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     s,
		chain:     chain,
		scorer:    scoring.NewScorer(cfg.KnownCities, cfg.PlaceholderLocations),
		matcher:   dedup.NewMatcher(cfg.Dedup),
		resolver:  resolver,
		collector: collector,
		client:    client,
		logger:    logger,
		now:       time.Now,
	}
}

// SourceReport is the outcome of one source pass.
type SourceReport struct {
	Source     string
	Fetched    int
	New        int
	Duplicates int
	Flagged    int
	Skipped    int
	Err        error
}

// RunReport aggregates all source passes of one run.
type RunReport struct {
	Started  time.Time
	Finished time.Time
	Sources  []SourceReport
}

// Failed returns the reports of sources that errored.
func (r RunReport) Failed() []SourceReport {
	var failed []SourceReport
	for _, sr := range r.Sources {
		if sr.Err != nil {
			failed = append(failed, sr)
		}
	}
	return failed
}

// TotalNew sums newly staged items across sources.
func (r RunReport) TotalNew() int {
	total := 0
	for _, sr := range r.Sources {
		total += sr.New
	}
	return total
}

// Run executes one pass over all enabled sources. A failing source is
// reported and skipped; the run itself only fails on storage errors.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{Started: p.now()}

	for _, srcCfg := range p.cfg.Sources {
		if !srcCfg.Enabled {
			continue
		}
		sourceReport, err := p.runSource(ctx, srcCfg)
		report.Sources = append(report.Sources, sourceReport)
		if err != nil {
			report.Finished = p.now()
			return report, err
		}
	}

	report.Finished = p.now()
	p.logger.Info("scrape run finished",
		"sources", len(report.Sources),
		"new_items", report.TotalNew(),
		"failed_sources", len(report.Failed()),
		"duration_ms", report.Finished.Sub(report.Started).Milliseconds())
	return report, nil
}

// runSource fetches and stages one source. The returned error is non-nil
// only for storage failures; fetch failures land in the report.
func (p *Pipeline) runSource(ctx context.Context, srcCfg config.SourceConfig) (SourceReport, error) {
	sourceReport := SourceReport{Source: srcCfg.Name}
	start := p.now()

	adapter, err := sources.New(srcCfg, p.client, p.logger)
	if err != nil {
		sourceReport.Err = err
		return sourceReport, nil
	}

	// Adapters retry transient failures themselves; a returned error here
	// means the source is down for this run.
	candidates, err := adapter.Fetch(ctx)
	if err != nil {
		sourceReport.Err = err
		p.logger.Error("source fetch failed, skipping source",
			"source", srcCfg.Name, "error", err)
		if p.collector != nil {
			p.collector.ObserveFetchError(srcCfg.Name)
		}
		return sourceReport, nil
	}
	sourceReport.Fetched = len(candidates)
	if p.collector != nil {
		p.collector.ObserveFetched(srcCfg.Name, string(srcCfg.Type), len(candidates))
	}

	buckets := &sourceBuckets{}
	if buckets.pending, err = p.store.Pending(); err != nil {
		return sourceReport, err
	}
	if buckets.published, err = p.store.Published(); err != nil {
		return sourceReport, err
	}
	if buckets.trash, err = p.store.Trash(); err != nil {
		return sourceReport, err
	}

	ocrEnabled := srcCfg.Social != nil && srcCfg.Social.OCR

	for i := range candidates {
		candidate := &candidates[i]
		if err := p.processCandidate(ctx, srcCfg, candidate, buckets, &sourceReport, ocrEnabled); err != nil {
			return sourceReport, err
		}
	}

	// Commit the whole source at once. Published and trash are only written
	// back when a sighting landed on a settled item.
	if buckets.publishedDirty {
		if err := p.store.SavePublished(buckets.published); err != nil {
			return sourceReport, err
		}
	}
	if buckets.trashDirty {
		if err := p.store.SaveTrash(buckets.trash); err != nil {
			return sourceReport, err
		}
	}
	if err := p.store.SavePending(buckets.pending); err != nil {
		return sourceReport, err
	}

	if p.collector != nil {
		p.collector.ObserveSourceDuration(srcCfg.Name, p.now().Sub(start))
	}
	p.logger.Info("source pass complete",
		"source", srcCfg.Name,
		"fetched", sourceReport.Fetched,
		"new", sourceReport.New,
		"duplicates", sourceReport.Duplicates,
		"flagged", sourceReport.Flagged)
	return sourceReport, nil
}

// sourceBuckets is the working copy of the three collections during one
// source pass. The dirty flags track which settled collections picked up
// sightings and need a write-back.
type sourceBuckets struct {
	pending        []models.PendingItem
	published      []models.Event
	trash          []models.PendingItem
	publishedDirty bool
	trashDirty     bool
}

func (p *Pipeline) processCandidate(ctx context.Context, srcCfg config.SourceConfig,
	candidate *models.CandidateEvent, buckets *sourceBuckets,
	sourceReport *SourceReport, ocrEnabled bool) error {

	if p.chain != nil {
		outcome := p.chain.Enrich(ctx, candidate, ocrEnabled)
		if p.collector != nil {
			if outcome.OCRRan {
				p.collector.ObserveEnrichment("ocr")
			}
			if outcome.AIRan {
				p.collector.ObserveEnrichment("ai")
			}
		}
	}

	if candidate.Title == "" {
		sourceReport.Skipped++
		p.logger.Debug("candidate without title skipped",
			"source", srcCfg.Name, "detail_url", candidate.DetailURL)
		return nil
	}

	confidence := p.scorer.Score(candidate.RawLocation, candidate.ExtractionMethod)

	match := p.bestMatch(*candidate, buckets)
	switch match.Verdict {
	case dedup.VerdictDuplicate:
		p.absorbDuplicate(srcCfg.Name, *candidate, match, buckets)
		sourceReport.Duplicates++
		p.observeOutcome(srcCfg.Name, "duplicate")
		return nil

	case dedup.VerdictReview:
		item, err := p.stageCandidate(srcCfg.Name, *candidate, confidence)
		if err != nil {
			return err
		}
		ambiguous := &models.AmbiguousMatch{
			Candidate: candidate.Title,
			Existing:  match.Title,
			Score:     match.Score,
		}
		item.Flag(ambiguous.Error())
		buckets.pending = append(buckets.pending, *item)
		sourceReport.New++
		sourceReport.Flagged++
		p.observeOutcome(srcCfg.Name, "review")
		return nil

	default:
		item, err := p.stageCandidate(srcCfg.Name, *candidate, confidence)
		if err != nil {
			return err
		}
		buckets.pending = append(buckets.pending, *item)
		sourceReport.New++
		if item.NeedsReview {
			sourceReport.Flagged++
		}
		p.observeOutcome(srcCfg.Name, "new")
		return nil
	}
}

// candidateMatch extends the matcher verdict with where the match lives.
type candidateMatch struct {
	dedup.Match
	Bucket string // "pending", "published", "trash"
	Index  int
	Title  string
}

// bestMatch compares the candidate against all three buckets. Matches on
// published or trashed items never re-enter the queue once an operator has
// decided; they only record the sighting.
func (p *Pipeline) bestMatch(candidate models.CandidateEvent, buckets *sourceBuckets) candidateMatch {
	fields := dedup.FromCandidate(candidate)
	best := candidateMatch{Match: dedup.Match{Index: -1}, Index: -1}

	consider := func(score float64, bucket string, index int, title string) {
		if score > best.Score {
			best.Score = score
			best.Bucket = bucket
			best.Index = index
			best.Title = title
		}
	}

	for i, item := range buckets.pending {
		if item.Event == nil {
			continue
		}
		consider(p.matcher.Similarity(fields, dedup.FromEvent(*item.Event)), "pending", i, item.Event.Title)
	}
	for i, event := range buckets.published {
		consider(p.matcher.Similarity(fields, dedup.FromEvent(event)), "published", i, event.Title)
	}
	for i, item := range buckets.trash {
		if item.Event == nil {
			continue
		}
		consider(p.matcher.Similarity(fields, dedup.FromEvent(*item.Event)), "trash", i, item.Event.Title)
	}

	best.Verdict = p.matcher.Classify(best.Score)
	return best
}

// absorbDuplicate records the sighting on whichever bucket holds the match.
// Pending matches also get empty fields backfilled from the new sighting;
// published and trashed items only gain a provenance bump, their fields are
// never touched.
func (p *Pipeline) absorbDuplicate(sourceName string, candidate models.CandidateEvent,
	match candidateMatch, buckets *sourceBuckets) {

	now := p.now()
	switch match.Bucket {
	case "pending":
		item := &buckets.pending[match.Index]
		item.RecordSighting(sourceName, now)
		backfillEvent(item.Event, candidate)
		p.logger.Debug("duplicate absorbed into pending item",
			"source", sourceName,
			"id", item.ID,
			"score", match.Score)
	case "published":
		event := &buckets.published[match.Index]
		event.RecordSighting(sourceName, now)
		buckets.publishedDirty = true
		p.logger.Debug("sighting of published event recorded",
			"source", sourceName,
			"id", event.ID,
			"score", match.Score)
	case "trash":
		item := &buckets.trash[match.Index]
		item.RecordSighting(sourceName, now)
		buckets.trashDirty = true
		p.logger.Debug("sighting of rejected item recorded",
			"source", sourceName,
			"id", item.ID,
			"score", match.Score)
	}
}

// stageCandidate resolves entities and wraps the candidate as a pending item.
func (p *Pipeline) stageCandidate(sourceName string, candidate models.CandidateEvent,
	confidence models.ConfidenceRecord) (*models.PendingItem, error) {

	location, err := p.resolver.ResolveLocation(candidate.RawLocation)
	if err != nil {
		return nil, err
	}
	organizer, err := p.resolver.ResolveOrganizer(candidate.RawOrganizer)
	if err != nil {
		return nil, err
	}

	now := p.now()
	event := models.Event{
		ID:          uuid.NewString(),
		Title:       candidate.Title,
		Description: candidate.Description,
		Start:       candidate.Start,
		End:         candidate.End,
		Location:    location,
		Organizer:   organizer,
		Latitude:    candidate.Latitude,
		Longitude:   candidate.Longitude,
		ImageURLs:   candidate.ImageURLs,
		DetailURL:   candidate.DetailURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	item := models.PendingItem{
		ID:          uuid.NewString(),
		Kind:        models.KindEvent,
		Status:      models.StatusPending,
		Event:       &event,
		Confidence:  confidence,
		NeedsReview: confidence.NeedsReview(),
		Provenance: []models.Provenance{{
			SourceID:  sourceName,
			FirstSeen: now,
			LastSeen:  now,
		}},
	}
	for _, note := range confidence.Notes {
		item.Flag(note)
	}
	return &item, nil
}

// backfillEvent fills empty fields of the staged event from a later
// sighting. Present fields are never overwritten.
func backfillEvent(event *models.Event, candidate models.CandidateEvent) {
	if event.Description == "" {
		event.Description = candidate.Description
	}
	if event.Start == nil {
		event.Start = candidate.Start
	}
	if event.End == nil {
		event.End = candidate.End
	}
	if event.Latitude == nil {
		event.Latitude = candidate.Latitude
		event.Longitude = candidate.Longitude
	}
	if event.DetailURL == "" {
		event.DetailURL = candidate.DetailURL
	}
	if len(event.ImageURLs) == 0 {
		event.ImageURLs = candidate.ImageURLs
	}
}

func (p *Pipeline) observeOutcome(source, outcome string) {
	if p.collector != nil {
		p.collector.ObserveOutcome(source, outcome)
	}
}
