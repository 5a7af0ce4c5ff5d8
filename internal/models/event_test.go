package models

import (
	"testing"
	"time"
)

func TestLocationAttachmentValidate(t *testing.T) {
	tests := []struct {
		name       string
		attachment LocationAttachment
		ok         bool
	}{
		{"none", LocationAttachment{}, true},
		{"reference", LocationReference("loc-1"), true},
		{"partial", LocationPartial("loc-1", Override{"room": "Saal 2"}), true},
		{"full", LocationFull(Location{Name: "Festwiese"}), true},
		{"unresolved", LocationUnresolved("irgendwo in Hof"), true},
		{"reference without id", LocationAttachment{Mode: AttachReference}, false},
		{"partial without patch", LocationAttachment{Mode: AttachPartial, RefID: "loc-1"}, false},
		{"full with ref id", LocationAttachment{
			Mode: AttachFull, RefID: "loc-1", Embedded: &Location{Name: "x"},
		}, false},
		{"unresolved without text", LocationAttachment{Mode: AttachUnresolved}, false},
		{"none with stray field", LocationAttachment{RefID: "loc-1"}, false},
		{"unknown mode", LocationAttachment{Mode: "linked"}, false},
		{"reference and embedded", LocationAttachment{
			Mode: AttachReference, RefID: "loc-1", Embedded: &Location{Name: "x"},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.attachment.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestAttachmentReferences(t *testing.T) {
	if !LocationReference("loc-1").References("loc-1") {
		t.Error("reference attachment must report its id")
	}
	if !LocationPartial("loc-1", Override{"name": "x"}).References("loc-1") {
		t.Error("partial override must report its id")
	}
	if LocationFull(Location{ID: "loc-1"}).References("loc-1") {
		t.Error("full override carries no registry link")
	}
	if LocationUnresolved("text").References("loc-1") {
		t.Error("unresolved attachment carries no registry link")
	}
}

func TestEventValidate(t *testing.T) {
	event := Event{
		ID:       "ev-1",
		Title:    "Sommerkonzert",
		Location: LocationReference("loc-1"),
	}
	if err := event.Validate(); err != nil {
		t.Errorf("valid event rejected: %v", err)
	}

	event.Title = ""
	if err := event.Validate(); err == nil {
		t.Error("event without title must fail")
	}

	event.Title = "Sommerkonzert"
	event.Location = LocationAttachment{Mode: AttachReference}
	if err := event.Validate(); err == nil {
		t.Error("broken attachment must fail event validation")
	}
}

func TestStartMonth(t *testing.T) {
	start := time.Date(2026, 7, 4, 9, 0, 0, 0, time.Local)
	event := Event{ID: "ev-1", Title: "Flohmarkt", Start: &start}
	if got := event.StartMonth(); got != "2026-07" {
		t.Errorf("StartMonth() = %q, want 2026-07", got)
	}

	event.Start = nil
	if got := event.StartMonth(); got != "" {
		t.Errorf("StartMonth() without start = %q, want empty", got)
	}
}

func TestCandidateMergeFillsOnlyEmptyFields(t *testing.T) {
	start := time.Date(2026, 6, 15, 20, 0, 0, 0, time.Local)
	c := CandidateEvent{Title: "Sommerkonzert", RawLocation: "Stadtpark"}
	c.Merge(CandidateEvent{
		Title:            "Anderer Titel",
		Start:            &start,
		RawLocation:      "Anderswo",
		RawOrganizer:     "Stadtkapelle",
		ExtractionMethod: "ai",
	})

	if c.Title != "Sommerkonzert" || c.RawLocation != "Stadtpark" {
		t.Errorf("existing fields overwritten: %+v", c)
	}
	if c.Start == nil || c.RawOrganizer != "Stadtkapelle" {
		t.Errorf("empty fields not filled: %+v", c)
	}
	if c.ExtractionMethod != "ai" {
		t.Errorf("extraction method = %q", c.ExtractionMethod)
	}
}
