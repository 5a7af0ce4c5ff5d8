package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPipelineCollectorRecordsMetrics(t *testing.T) {
	collector, err := NewPipelineCollector()
	if err != nil {
		t.Fatalf("NewPipelineCollector returned error: %v", err)
	}

	collector.ObserveFetched("stadt-feed", "feed", 12)
	collector.ObserveOutcome("stadt-feed", "new")
	collector.ObserveOutcome("stadt-feed", "duplicate")
	collector.ObserveFetchError("broken-api")
	collector.ObserveEnrichment("ocr")
	collector.ObserveSourceDuration("stadt-feed", 250*time.Millisecond)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics handler to return 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	for _, want := range []string{
		`kulturkalender_pipeline_candidates_fetched_total{source="stadt-feed",type="feed"} 12`,
		`kulturkalender_pipeline_candidate_outcomes_total{outcome="new",source="stadt-feed"} 1`,
		`kulturkalender_pipeline_candidate_outcomes_total{outcome="duplicate",source="stadt-feed"} 1`,
		`kulturkalender_pipeline_fetch_errors_total{source="broken-api"} 1`,
		`kulturkalender_pipeline_enrichment_passes_total{provider="ocr"} 1`,
		`kulturkalender_pipeline_source_duration_seconds_count{source="stadt-feed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metric missing from exposition: %s", want)
		}
	}
}
