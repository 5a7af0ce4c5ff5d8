package models

import (
	"time"
)

// ConfidenceLevel is the categorical trust estimate for an extracted field.
type ConfidenceLevel string

const (
	ConfidenceHigh    ConfidenceLevel = "high"
	ConfidenceMedium  ConfidenceLevel = "medium"
	ConfidenceLow     ConfidenceLevel = "low"
	ConfidenceUnknown ConfidenceLevel = "unknown"
)

// ConfidenceRecord documents how trustworthy the location extraction of a
// pending item is. It is attached at creation time and becomes immutable
// historical provenance once the item is approved.
type ConfidenceRecord struct {
	Level            ConfidenceLevel `json:"level"`
	Reason           string          `json:"reason"`
	Notes            []string        `json:"notes,omitempty"`
	ExtractionMethod string          `json:"extraction_method"`
	Timestamp        time.Time       `json:"timestamp"`
}

// NeedsReview reports whether the record should flag its item for manual
// review: any level below high, or any ambiguity note even at medium.
func (c ConfidenceRecord) NeedsReview() bool {
	if c.Level != ConfidenceHigh {
		return true
	}
	return len(c.Notes) > 0
}
