package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/kulturkalender/kulturkalender/internal/models"
)

// Approve moves a pending item out of the queue: events go to the published
// collection, location and organizer proposals become verified registry
// entries. The destination is written before the queue so a crash in between
// leaves a duplicate that VerifyIntegrity reports, never a lost item.
func (s *Store) Approve(id string) (*models.PendingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.Pending()
	if err != nil {
		return nil, err
	}
	idx := indexByID(pending, id)
	if idx < 0 {
		return nil, s.transitionTarget(id, models.StatusPublished)
	}
	item := pending[idx]
	if item.Status != models.StatusPending {
		return nil, &models.InvalidTransition{ID: id, From: item.Status, To: models.StatusPublished}
	}

	now := time.Now()
	switch item.Kind {
	case models.KindEvent:
		published, err := s.Published()
		if err != nil {
			return nil, err
		}
		event := *item.Event
		event.UpdatedAt = now
		confidence := item.Confidence
		event.Confidence = &confidence
		event.Provenance = item.Provenance
		if err := event.Validate(); err != nil {
			return nil, fmt.Errorf("approve %s: %w", id, err)
		}
		// A crash after the published write leaves the event already there;
		// re-applying the approve must not add a second copy.
		if indexEventByID(published, event.ID) < 0 {
			if err := s.SavePublished(append(published, event)); err != nil {
				return nil, err
			}
		}
	case models.KindLocation:
		locations, err := s.Locations()
		if err != nil {
			return nil, err
		}
		loc := *item.Location
		loc.Verified = true
		loc.UpdatedAt = now
		if err := s.SaveLocations(upsertLocation(locations, loc)); err != nil {
			return nil, err
		}
	case models.KindOrganizer:
		organizers, err := s.Organizers()
		if err != nil {
			return nil, err
		}
		org := *item.Organizer
		org.Verified = true
		org.UpdatedAt = now
		if err := s.SaveOrganizers(upsertOrganizer(organizers, org)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("approve %s: unknown kind %q", id, item.Kind)
	}

	item.Status = models.StatusPublished
	if err := s.SavePending(removeAt(pending, idx)); err != nil {
		return nil, err
	}

	s.logger.Info("item approved", "id", id, "kind", item.Kind, "title", item.Title())
	return &item, nil
}

// Reject moves a pending item to the trash with a reason. Provenance travels
// with it so a later sighting of the same announcement is recognized as
// already rejected instead of re-entering the queue.
func (s *Store) Reject(id, reason string) (*models.PendingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.Pending()
	if err != nil {
		return nil, err
	}
	idx := indexByID(pending, id)
	if idx < 0 {
		return nil, s.transitionTarget(id, models.StatusRejected)
	}
	item := pending[idx]
	if item.Status != models.StatusPending {
		return nil, &models.InvalidTransition{ID: id, From: item.Status, To: models.StatusRejected}
	}

	item.Status = models.StatusRejected
	item.RejectReason = reason

	trash, err := s.Trash()
	if err != nil {
		return nil, err
	}
	if err := s.SaveTrash(append(trash, item)); err != nil {
		return nil, err
	}
	if err := s.SavePending(removeAt(pending, idx)); err != nil {
		return nil, err
	}

	s.logger.Info("item rejected", "id", id, "title", item.Title(), "reason", reason)
	return &item, nil
}

// FindPending resolves an id or unique id prefix against the queue.
func (s *Store) FindPending(idOrPrefix string) (*models.PendingItem, error) {
	pending, err := s.Pending()
	if err != nil {
		return nil, err
	}
	var matches []models.PendingItem
	for _, item := range pending {
		if item.ID == idOrPrefix {
			return &item, nil
		}
		if strings.HasPrefix(item.ID, idOrPrefix) {
			matches = append(matches, item)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no pending item matches %q", idOrPrefix)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%d pending items match %q, need a longer prefix", len(matches), idOrPrefix)
	}
}

// VerifyIntegrity checks the invariants across all collections and returns
// one fault per violation. It never repairs anything.
func (s *Store) VerifyIntegrity() ([]error, error) {
	pending, err := s.Pending()
	if err != nil {
		return nil, err
	}
	published, err := s.Published()
	if err != nil {
		return nil, err
	}
	trash, err := s.Trash()
	if err != nil {
		return nil, err
	}
	locations, err := s.Locations()
	if err != nil {
		return nil, err
	}
	organizers, err := s.Organizers()
	if err != nil {
		return nil, err
	}

	var faults []error

	seen := map[string]string{}
	note := func(id, bucket string) {
		if prev, ok := seen[id]; ok {
			faults = append(faults, &models.IntegrityFault{
				ID:     id,
				Detail: fmt.Sprintf("present in both %s and %s", prev, bucket),
			})
			return
		}
		seen[id] = bucket
	}

	// Wrapped event ids are indexed alongside item ids: an approve interrupted
	// between its two writes leaves the event in published while the wrapping
	// item still sits in pending, and only the event id ties the two together.
	for _, item := range pending {
		note(item.ID, "pending")
		if item.Event != nil {
			note(item.Event.ID, "pending")
		}
		if err := item.Validate(); err != nil {
			faults = append(faults, &models.IntegrityFault{ID: item.ID, Detail: err.Error()})
			continue
		}
		if item.Status != models.StatusPending {
			faults = append(faults, &models.IntegrityFault{
				ID:     item.ID,
				Detail: fmt.Sprintf("status %s stored in pending bucket", item.Status),
			})
		}
	}
	for _, item := range trash {
		note(item.ID, "trash")
		if item.Event != nil {
			note(item.Event.ID, "trash")
		}
		if item.Status != models.StatusRejected {
			faults = append(faults, &models.IntegrityFault{
				ID:     item.ID,
				Detail: fmt.Sprintf("status %s stored in trash bucket", item.Status),
			})
		}
	}

	locationIDs := map[string]bool{}
	for _, loc := range locations {
		locationIDs[loc.ID] = true
	}
	organizerIDs := map[string]bool{}
	for _, org := range organizers {
		organizerIDs[org.ID] = true
	}

	for _, event := range published {
		note(event.ID, "published")
		if err := event.Validate(); err != nil {
			faults = append(faults, &models.IntegrityFault{ID: event.ID, Detail: err.Error()})
			continue
		}
		if ref := event.Location.RefID; ref != "" && !locationIDs[ref] {
			faults = append(faults, &models.IntegrityFault{
				ID:     event.ID,
				Detail: fmt.Sprintf("references missing location %s", ref),
			})
		}
		if ref := event.Organizer.RefID; ref != "" && !organizerIDs[ref] {
			faults = append(faults, &models.IntegrityFault{
				ID:     event.ID,
				Detail: fmt.Sprintf("references missing organizer %s", ref),
			})
		}
	}

	// An archiver interrupted between the bucket write and the published
	// shrink leaves the event in both places.
	months, err := s.ArchiveMonths()
	if err != nil {
		return nil, err
	}
	for _, month := range months {
		bucket, err := s.ArchiveMonth(month)
		if err != nil {
			return nil, err
		}
		for _, event := range bucket {
			note(event.ID, "archive/"+month)
		}
	}

	return faults, nil
}

// transitionTarget explains why a transition failed for an id not in the
// queue: already published or rejected yields InvalidTransition, unknown
// ids a plain error.
func (s *Store) transitionTarget(id string, to models.ItemStatus) error {
	published, err := s.Published()
	if err == nil {
		for _, event := range published {
			if event.ID == id {
				return &models.InvalidTransition{ID: id, From: models.StatusPublished, To: to}
			}
		}
	}
	trash, err := s.Trash()
	if err == nil {
		for _, item := range trash {
			if item.ID == id {
				return &models.InvalidTransition{ID: id, From: models.StatusRejected, To: to}
			}
		}
	}
	return fmt.Errorf("no pending item with id %s", id)
}

func indexByID(items []models.PendingItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func indexEventByID(events []models.Event, id string) int {
	for i := range events {
		if events[i].ID == id {
			return i
		}
	}
	return -1
}

func removeAt(items []models.PendingItem, idx int) []models.PendingItem {
	out := make([]models.PendingItem, 0, len(items)-1)
	out = append(out, items[:idx]...)
	return append(out, items[idx+1:]...)
}

func upsertLocation(locations []models.Location, loc models.Location) []models.Location {
	for i := range locations {
		if locations[i].ID == loc.ID {
			locations[i] = loc
			return locations
		}
	}
	return append(locations, loc)
}

func upsertOrganizer(organizers []models.Organizer, org models.Organizer) []models.Organizer {
	for i := range organizers {
		if organizers[i].ID == org.ID {
			organizers[i] = org
			return organizers
		}
	}
	return append(organizers, org)
}
