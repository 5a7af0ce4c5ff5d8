package models

import (
	"strings"
	"time"
)

// CandidateEvent is the transient draft a single adapter run produces.
// It carries raw, unresolved text for location and organizer; identity
// assignment and registry resolution happen later in the pipeline. A
// candidate is owned by the run that created it and is discarded once it
// has been merged into a PendingItem or dropped as a duplicate.
type CandidateEvent struct {
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Start        *time.Time `json:"start,omitempty"`
	End          *time.Time `json:"end,omitempty"`
	RawLocation  string     `json:"raw_location,omitempty"`
	RawOrganizer string     `json:"raw_organizer,omitempty"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	ImageURLs    []string   `json:"image_urls,omitempty"`
	DetailURL    string     `json:"detail_url,omitempty"`
	Language     string     `json:"language,omitempty"`

	SourceID         string    `json:"source_id"`
	FetchedAt        time.Time `json:"fetched_at"`
	ExtractionMethod string    `json:"extraction_method"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (c *CandidateEvent) HasCoordinates() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// IsEmpty reports whether the candidate carries no usable content at all.
func (c *CandidateEvent) IsEmpty() bool {
	return strings.TrimSpace(c.Title) == "" && c.Start == nil
}

// Merge fills empty fields of the candidate from another draft of the same
// event. Filled fields are never overwritten; enrichment only adds.
func (c *CandidateEvent) Merge(other CandidateEvent) {
	if c.Title == "" {
		c.Title = other.Title
	}
	if c.Description == "" {
		c.Description = other.Description
	}
	if c.Start == nil {
		c.Start = other.Start
	}
	if c.End == nil {
		c.End = other.End
	}
	if c.RawLocation == "" {
		c.RawLocation = other.RawLocation
	}
	if c.RawOrganizer == "" {
		c.RawOrganizer = other.RawOrganizer
	}
	if c.Latitude == nil {
		c.Latitude = other.Latitude
	}
	if c.Longitude == nil {
		c.Longitude = other.Longitude
	}
	if other.ExtractionMethod != "" {
		c.ExtractionMethod = other.ExtractionMethod
	}
}
