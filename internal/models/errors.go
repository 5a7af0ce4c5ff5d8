package models

import (
	"errors"
	"fmt"
)

// FetchError wraps a network or parse failure inside a source adapter. The
// pipeline skips the failing source, logs the error and continues the batch.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s failed: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError wraps err as a FetchError for the named source.
func NewFetchError(source string, err error) error {
	return &FetchError{Source: source, Err: err}
}

// IsFetchError reports whether err is (or wraps) a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// EnrichmentUnavailable signals a provider that is down or rate-limited.
// The enrichment step is skipped; the candidate keeps its prior fields.
type EnrichmentUnavailable struct {
	Provider string
	Err      error
}

func (e *EnrichmentUnavailable) Error() string {
	return fmt.Sprintf("enrichment provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *EnrichmentUnavailable) Unwrap() error { return e.Err }

// IsEnrichmentUnavailable reports whether err is (or wraps) an
// EnrichmentUnavailable error.
func IsEnrichmentUnavailable(err error) bool {
	var eu *EnrichmentUnavailable
	return errors.As(err, &eu)
}

// AmbiguousMatch is a dedup or resolution score inside the undecided band.
// It is surfaced as a review flag, never resolved silently.
type AmbiguousMatch struct {
	Candidate string
	Existing  string
	Score     float64
}

func (e *AmbiguousMatch) Error() string {
	return fmt.Sprintf("ambiguous match between %q and %q (score %.2f)", e.Candidate, e.Existing, e.Score)
}

// InvalidTransition is a state machine misuse: the call is rejected without
// any partial mutation.
type InvalidTransition struct {
	ID   string
	From ItemStatus
	To   ItemStatus
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition for %s: %s -> %s", e.ID, e.From, e.To)
}

// IsInvalidTransition reports whether err is (or wraps) an InvalidTransition.
func IsInvalidTransition(err error) bool {
	var it *InvalidTransition
	return errors.As(err, &it)
}

// IntegrityFault is an item missing from every expected collection, e.g.
// after a crash between the two steps of a pending-to-published move. It must
// be surfaced loudly and never auto-repaired.
type IntegrityFault struct {
	ID     string
	Detail string
}

func (e *IntegrityFault) Error() string {
	return fmt.Sprintf("integrity fault for %s: %s", e.ID, e.Detail)
}

// IsIntegrityFault reports whether err is (or wraps) an IntegrityFault.
func IsIntegrityFault(err error) bool {
	var f *IntegrityFault
	return errors.As(err, &f)
}
