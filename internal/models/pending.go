package models

import (
	"fmt"
	"time"
)

// PendingKind tags which entity a pending item wraps.
type PendingKind string

const (
	KindEvent     PendingKind = "event"
	KindLocation  PendingKind = "location"
	KindOrganizer PendingKind = "organizer"
)

// ItemStatus is the lifecycle state of a pending item. The status and the
// physical storage bucket the item lives in must always agree.
type ItemStatus string

const (
	StatusPending   ItemStatus = "pending"
	StatusPublished ItemStatus = "published"
	StatusRejected  ItemStatus = "rejected"
	StatusArchived  ItemStatus = "archived"
)

// Provenance records one sighting of an item from a source.
type Provenance struct {
	SourceID  string    `json:"source_id"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// PendingItem stages a scraped entity in the editorial queue. It is a tagged
// union over the entity kinds: exactly one of Event, Location, Organizer is
// populated, selected by Kind.
type PendingItem struct {
	ID     string      `json:"id"`
	Kind   PendingKind `json:"kind"`
	Status ItemStatus  `json:"status"`

	Event     *Event     `json:"event,omitempty"`
	Location  *Location  `json:"location,omitempty"`
	Organizer *Organizer `json:"organizer,omitempty"`

	Confidence   ConfidenceRecord `json:"confidence"`
	NeedsReview  bool             `json:"needs_review"`
	ReviewNotes  []string         `json:"review_notes,omitempty"`
	Provenance   []Provenance     `json:"provenance"`
	RejectReason string           `json:"reject_reason,omitempty"`
}

// Validate checks that exactly the variant selected by Kind is populated.
func (p *PendingItem) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("pending item id must not be empty")
	}
	set := 0
	if p.Event != nil {
		set++
	}
	if p.Location != nil {
		set++
	}
	if p.Organizer != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("pending item %s must wrap exactly one entity, has %d", p.ID, set)
	}
	switch p.Kind {
	case KindEvent:
		if p.Event == nil {
			return fmt.Errorf("pending item %s tagged %s but wraps no event", p.ID, p.Kind)
		}
	case KindLocation:
		if p.Location == nil {
			return fmt.Errorf("pending item %s tagged %s but wraps no location", p.ID, p.Kind)
		}
	case KindOrganizer:
		if p.Organizer == nil {
			return fmt.Errorf("pending item %s tagged %s but wraps no organizer", p.ID, p.Kind)
		}
	default:
		return fmt.Errorf("pending item %s has unknown kind %q", p.ID, p.Kind)
	}
	return nil
}

// Title returns a display title for whichever entity the item wraps.
func (p *PendingItem) Title() string {
	switch {
	case p.Event != nil:
		return p.Event.Title
	case p.Location != nil:
		return p.Location.Name
	case p.Organizer != nil:
		return p.Organizer.Name
	}
	return ""
}

// RecordSighting bumps last-seen for the given source, adding a provenance
// entry on first contact from that source.
func (p *PendingItem) RecordSighting(sourceID string, at time.Time) {
	p.Provenance = recordSighting(p.Provenance, sourceID, at)
}

func recordSighting(entries []Provenance, sourceID string, at time.Time) []Provenance {
	for i := range entries {
		if entries[i].SourceID == sourceID {
			if at.After(entries[i].LastSeen) {
				entries[i].LastSeen = at
			}
			return entries
		}
	}
	return append(entries, Provenance{
		SourceID:  sourceID,
		FirstSeen: at,
		LastSeen:  at,
	})
}

// Flag marks the item for manual review with a note, once per note text.
func (p *PendingItem) Flag(note string) {
	p.NeedsReview = true
	for _, n := range p.ReviewNotes {
		if n == note {
			return
		}
	}
	p.ReviewNotes = append(p.ReviewNotes, note)
}
