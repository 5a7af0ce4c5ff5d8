package models

import (
	"fmt"
	"time"
)

// AttachMode selects which variant of an entity attachment is populated.
type AttachMode string

const (
	// AttachNone means no attachment at all (organizer may be absent).
	AttachNone AttachMode = ""
	// AttachReference stores only a registry id; display fields come from
	// the registry entry.
	AttachReference AttachMode = "reference"
	// AttachPartial stores a registry id plus a sparse patch whose fields
	// win over the referenced entry, for this event only.
	AttachPartial AttachMode = "partial_override"
	// AttachFull embeds a one-off entity snapshot with no registry link.
	AttachFull AttachMode = "full_override"
	// AttachUnresolved keeps the raw scraped text for manual resolution.
	AttachUnresolved AttachMode = "unresolved"
)

// Override is the sparse field patch of a partial override.
type Override map[string]string

// LocationAttachment ties an event to a venue in exactly one of three ways:
// reference-only, reference plus patch, or embedded snapshot. The unresolved
// variant parks raw text until an operator decides.
type LocationAttachment struct {
	Mode     AttachMode `json:"mode"`
	RefID    string     `json:"ref_id,omitempty"`
	Patch    Override   `json:"patch,omitempty"`
	Embedded *Location  `json:"embedded,omitempty"`
	RawText  string     `json:"raw_text,omitempty"`
}

// LocationReference builds a reference-only attachment.
func LocationReference(id string) LocationAttachment {
	return LocationAttachment{Mode: AttachReference, RefID: id}
}

// LocationPartial builds a reference attachment with a sparse patch.
func LocationPartial(id string, patch Override) LocationAttachment {
	return LocationAttachment{Mode: AttachPartial, RefID: id, Patch: patch}
}

// LocationFull embeds a one-off venue snapshot.
func LocationFull(loc Location) LocationAttachment {
	return LocationAttachment{Mode: AttachFull, Embedded: &loc}
}

// LocationUnresolved parks raw text for manual disambiguation.
func LocationUnresolved(raw string) LocationAttachment {
	return LocationAttachment{Mode: AttachUnresolved, RawText: raw}
}

// Validate enforces that exactly the fields of the selected variant are set.
func (a LocationAttachment) Validate() error {
	switch a.Mode {
	case AttachNone:
		if a.RefID != "" || a.Embedded != nil || len(a.Patch) > 0 || a.RawText != "" {
			return fmt.Errorf("empty attachment must carry no fields")
		}
	case AttachReference:
		if a.RefID == "" || a.Embedded != nil || len(a.Patch) > 0 {
			return fmt.Errorf("reference attachment must carry only ref_id")
		}
	case AttachPartial:
		if a.RefID == "" || len(a.Patch) == 0 || a.Embedded != nil {
			return fmt.Errorf("partial override must carry ref_id and patch")
		}
	case AttachFull:
		if a.Embedded == nil || a.RefID != "" || len(a.Patch) > 0 {
			return fmt.Errorf("full override must carry only an embedded entity")
		}
	case AttachUnresolved:
		if a.RawText == "" || a.RefID != "" || a.Embedded != nil {
			return fmt.Errorf("unresolved attachment must carry only raw text")
		}
	default:
		return fmt.Errorf("unknown attachment mode %q", a.Mode)
	}
	return nil
}

// References reports whether the attachment points at the given registry id.
func (a LocationAttachment) References(id string) bool {
	return (a.Mode == AttachReference || a.Mode == AttachPartial) && a.RefID == id
}

// OrganizerAttachment is the organizer counterpart of LocationAttachment.
type OrganizerAttachment struct {
	Mode     AttachMode `json:"mode"`
	RefID    string     `json:"ref_id,omitempty"`
	Patch    Override   `json:"patch,omitempty"`
	Embedded *Organizer `json:"embedded,omitempty"`
	RawText  string     `json:"raw_text,omitempty"`
}

// OrganizerReference builds a reference-only attachment.
func OrganizerReference(id string) OrganizerAttachment {
	return OrganizerAttachment{Mode: AttachReference, RefID: id}
}

// OrganizerPartial builds a reference attachment with a sparse patch.
func OrganizerPartial(id string, patch Override) OrganizerAttachment {
	return OrganizerAttachment{Mode: AttachPartial, RefID: id, Patch: patch}
}

// OrganizerFull embeds a one-off organizer snapshot.
func OrganizerFull(org Organizer) OrganizerAttachment {
	return OrganizerAttachment{Mode: AttachFull, Embedded: &org}
}

// OrganizerUnresolved parks raw text for manual disambiguation.
func OrganizerUnresolved(raw string) OrganizerAttachment {
	return OrganizerAttachment{Mode: AttachUnresolved, RawText: raw}
}

// Validate enforces that exactly the fields of the selected variant are set.
func (a OrganizerAttachment) Validate() error {
	loc := LocationAttachment{Mode: a.Mode, RefID: a.RefID, Patch: a.Patch, RawText: a.RawText}
	if a.Embedded != nil {
		loc.Embedded = &Location{}
	}
	return loc.Validate()
}

// References reports whether the attachment points at the given registry id.
func (a OrganizerAttachment) References(id string) bool {
	return (a.Mode == AttachReference || a.Mode == AttachPartial) && a.RefID == id
}

// Event is the canonical record of a published event. It never holds both a
// registry reference and an override for the same related entity; the
// attachment types enforce that shape.
type Event struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Start       *time.Time          `json:"start,omitempty"`
	End         *time.Time          `json:"end,omitempty"`
	Location    LocationAttachment  `json:"location"`
	Organizer   OrganizerAttachment `json:"organizer"`
	Latitude    *float64            `json:"latitude,omitempty"`
	Longitude   *float64            `json:"longitude,omitempty"`
	ImageURLs   []string            `json:"image_urls,omitempty"`
	DetailURL   string              `json:"detail_url,omitempty"`

	// Confidence is the record frozen at approval time; Provenance keeps
	// accumulating sightings after publication.
	Confidence *ConfidenceRecord `json:"confidence,omitempty"`
	Provenance []Provenance      `json:"provenance,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordSighting bumps last-seen for the given source, adding a provenance
// entry on first contact from that source.
func (e *Event) RecordSighting(sourceID string, at time.Time) {
	e.Provenance = recordSighting(e.Provenance, sourceID, at)
}

// Validate checks the structural invariants of a canonical event.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event id must not be empty")
	}
	if e.Title == "" {
		return fmt.Errorf("event title must not be empty")
	}
	if err := e.Location.Validate(); err != nil {
		return fmt.Errorf("location attachment: %w", err)
	}
	if err := e.Organizer.Validate(); err != nil {
		return fmt.Errorf("organizer attachment: %w", err)
	}
	return nil
}

// StartMonth returns the archive bucket key ("2026-07") for the event's
// start time, or the zero string when no start time is known.
func (e *Event) StartMonth() string {
	if e.Start == nil {
		return ""
	}
	return e.Start.Format("2006-01")
}
