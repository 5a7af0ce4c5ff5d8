package resolve

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/kulturkalender/kulturkalender/internal/config"
	"github.com/kulturkalender/kulturkalender/internal/models"
	"github.com/kulturkalender/kulturkalender/internal/store"
)

// Resolver links raw scraped location and organizer strings to registry
// entries. A confident match becomes a reference, a clear miss becomes a new
// proposed entry, and anything in between is parked as unresolved raw text
// for an operator.
type Resolver struct {
	store  *store.Store
	cfg    config.ResolveConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewResolver creates a resolver over the given store.
func NewResolver(s *store.Store, cfg config.ResolveConfig, logger *slog.Logger) *Resolver {
	return &Resolver{store: s, cfg: cfg, logger: logger, now: time.Now}
}

// ResolveLocation maps raw venue text to an attachment. A high-scoring match
// records the raw text as an alias of the matched entry; a clear miss creates
// an unverified proposed entry.
func (r *Resolver) ResolveLocation(raw string) (models.LocationAttachment, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.LocationAttachment{}, nil
	}

	locations, err := r.store.Locations()
	if err != nil {
		return models.LocationAttachment{}, err
	}

	bestIdx, bestScore := -1, 0.0
	for i := range locations {
		if score := bestNameScore(raw, locations[i].MatchNames()); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}

	switch {
	case bestIdx >= 0 && bestScore >= r.cfg.HighThreshold:
		matched := &locations[bestIdx]
		matched.AddAlias(raw)
		matched.UpdatedAt = r.now()
		if err := r.store.SaveLocations(locations); err != nil {
			return models.LocationAttachment{}, err
		}
		r.logger.Debug("location resolved",
			"raw", raw, "matched", matched.Name, "score", bestScore)
		return models.LocationReference(matched.ID), nil

	case bestIdx < 0 || bestScore < r.cfg.LowThreshold:
		proposed := models.Location{
			ID:        uuid.NewString(),
			Name:      raw,
			Verified:  false,
			CreatedAt: r.now(),
			UpdatedAt: r.now(),
		}
		if err := r.store.SaveLocations(append(locations, proposed)); err != nil {
			return models.LocationAttachment{}, err
		}
		r.logger.Info("location proposed", "name", raw)
		return models.LocationReference(proposed.ID), nil

	default:
		r.logger.Debug("location ambiguous, left unresolved",
			"raw", raw, "closest", locations[bestIdx].Name, "score", bestScore)
		return models.LocationUnresolved(raw), nil
	}
}

// ResolveOrganizer maps raw organizer text to an attachment, mirroring
// ResolveLocation.
func (r *Resolver) ResolveOrganizer(raw string) (models.OrganizerAttachment, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.OrganizerAttachment{}, nil
	}

	organizers, err := r.store.Organizers()
	if err != nil {
		return models.OrganizerAttachment{}, err
	}

	bestIdx, bestScore := -1, 0.0
	for i := range organizers {
		if score := bestNameScore(raw, organizers[i].MatchNames()); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}

	switch {
	case bestIdx >= 0 && bestScore >= r.cfg.HighThreshold:
		matched := &organizers[bestIdx]
		matched.AddAlias(raw)
		matched.UpdatedAt = r.now()
		if err := r.store.SaveOrganizers(organizers); err != nil {
			return models.OrganizerAttachment{}, err
		}
		return models.OrganizerReference(matched.ID), nil

	case bestIdx < 0 || bestScore < r.cfg.LowThreshold:
		proposed := models.Organizer{
			ID:        uuid.NewString(),
			Name:      raw,
			Verified:  false,
			CreatedAt: r.now(),
			UpdatedAt: r.now(),
		}
		if err := r.store.SaveOrganizers(append(organizers, proposed)); err != nil {
			return models.OrganizerAttachment{}, err
		}
		r.logger.Info("organizer proposed", "name", raw)
		return models.OrganizerReference(proposed.ID), nil

	default:
		return models.OrganizerUnresolved(raw), nil
	}
}

// MergeLocations folds oldID into survivorID: the survivor absorbs the old
// entry's name and aliases, every event reference is repointed, then the old
// entry is removed. Events are rewritten before the registry so a crash can
// leave a stale entry behind but never a dangling reference.
func (r *Resolver) MergeLocations(oldID, survivorID string) error {
	if oldID == survivorID {
		return fmt.Errorf("cannot merge a location into itself")
	}
	locations, err := r.store.Locations()
	if err != nil {
		return err
	}
	oldIdx, survivorIdx := -1, -1
	for i := range locations {
		switch locations[i].ID {
		case oldID:
			oldIdx = i
		case survivorID:
			survivorIdx = i
		}
	}
	if oldIdx < 0 {
		return fmt.Errorf("no location with id %s", oldID)
	}
	if survivorIdx < 0 {
		return fmt.Errorf("no location with id %s", survivorID)
	}

	old := locations[oldIdx]
	survivor := &locations[survivorIdx]
	survivor.AddAlias(old.Name)
	for _, alias := range old.Aliases {
		survivor.AddAlias(alias)
	}
	if survivor.Street == "" {
		survivor.Street = old.Street
	}
	if survivor.PostalCode == "" {
		survivor.PostalCode = old.PostalCode
	}
	if survivor.City == "" {
		survivor.City = old.City
	}
	if !survivor.HasCoordinates() && old.HasCoordinates() {
		survivor.Latitude = old.Latitude
		survivor.Longitude = old.Longitude
	}
	survivor.UpdatedAt = r.now()

	repointed, err := r.repointLocationRefs(oldID, survivorID)
	if err != nil {
		return err
	}

	remaining := append(locations[:oldIdx:oldIdx], locations[oldIdx+1:]...)
	if err := r.store.SaveLocations(remaining); err != nil {
		return err
	}

	r.logger.Info("locations merged",
		"old", old.Name, "survivor", survivor.Name, "repointed_events", repointed)
	return nil
}

// MergeOrganizers folds oldID into survivorID, mirroring MergeLocations.
func (r *Resolver) MergeOrganizers(oldID, survivorID string) error {
	if oldID == survivorID {
		return fmt.Errorf("cannot merge an organizer into itself")
	}
	organizers, err := r.store.Organizers()
	if err != nil {
		return err
	}
	oldIdx, survivorIdx := -1, -1
	for i := range organizers {
		switch organizers[i].ID {
		case oldID:
			oldIdx = i
		case survivorID:
			survivorIdx = i
		}
	}
	if oldIdx < 0 {
		return fmt.Errorf("no organizer with id %s", oldID)
	}
	if survivorIdx < 0 {
		return fmt.Errorf("no organizer with id %s", survivorID)
	}

	old := organizers[oldIdx]
	survivor := &organizers[survivorIdx]
	survivor.AddAlias(old.Name)
	for _, alias := range old.Aliases {
		survivor.AddAlias(alias)
	}
	if survivor.Email == "" {
		survivor.Email = old.Email
	}
	if survivor.Phone == "" {
		survivor.Phone = old.Phone
	}
	if survivor.Website == "" {
		survivor.Website = old.Website
	}
	survivor.UpdatedAt = r.now()

	repointed, err := r.repointOrganizerRefs(oldID, survivorID)
	if err != nil {
		return err
	}

	remaining := append(organizers[:oldIdx:oldIdx], organizers[oldIdx+1:]...)
	if err := r.store.SaveOrganizers(remaining); err != nil {
		return err
	}

	r.logger.Info("organizers merged",
		"old", old.Name, "survivor", survivor.Name, "repointed_events", repointed)
	return nil
}

// DeleteLocation removes a registry entry, refusing while any event still
// references it.
func (r *Resolver) DeleteLocation(id string) error {
	count, err := r.countLocationRefs(id)
	if err != nil {
		return err
	}
	if count > 0 {
		return &models.IntegrityFault{
			ID:     id,
			Detail: fmt.Sprintf("still referenced by %d events, merge or repoint them first", count),
		}
	}

	locations, err := r.store.Locations()
	if err != nil {
		return err
	}
	for i := range locations {
		if locations[i].ID == id {
			return r.store.SaveLocations(append(locations[:i:i], locations[i+1:]...))
		}
	}
	return fmt.Errorf("no location with id %s", id)
}

// DeleteOrganizer removes a registry entry, refusing while any event still
// references it.
func (r *Resolver) DeleteOrganizer(id string) error {
	count, err := r.countOrganizerRefs(id)
	if err != nil {
		return err
	}
	if count > 0 {
		return &models.IntegrityFault{
			ID:     id,
			Detail: fmt.Sprintf("still referenced by %d events, merge or repoint them first", count),
		}
	}

	organizers, err := r.store.Organizers()
	if err != nil {
		return err
	}
	for i := range organizers {
		if organizers[i].ID == id {
			return r.store.SaveOrganizers(append(organizers[:i:i], organizers[i+1:]...))
		}
	}
	return fmt.Errorf("no organizer with id %s", id)
}

// repointLocationRefs rewrites every reference and partial override pointing
// at oldID across published, pending and archived events.
func (r *Resolver) repointLocationRefs(oldID, survivorID string) (int, error) {
	count := 0

	published, err := r.store.Published()
	if err != nil {
		return 0, err
	}
	changed := false
	for i := range published {
		if published[i].Location.References(oldID) {
			published[i].Location.RefID = survivorID
			published[i].UpdatedAt = r.now()
			changed = true
			count++
		}
	}
	if changed {
		if err := r.store.SavePublished(published); err != nil {
			return 0, err
		}
	}

	pending, err := r.store.Pending()
	if err != nil {
		return 0, err
	}
	changed = false
	for i := range pending {
		if pending[i].Event != nil && pending[i].Event.Location.References(oldID) {
			pending[i].Event.Location.RefID = survivorID
			changed = true
			count++
		}
	}
	if changed {
		if err := r.store.SavePending(pending); err != nil {
			return 0, err
		}
	}

	months, err := r.store.ArchiveMonths()
	if err != nil {
		return 0, err
	}
	for _, month := range months {
		bucket, err := r.store.ArchiveMonth(month)
		if err != nil {
			return 0, err
		}
		changed = false
		for i := range bucket {
			if bucket[i].Location.References(oldID) {
				bucket[i].Location.RefID = survivorID
				changed = true
				count++
			}
		}
		if changed {
			if err := r.store.SaveArchiveMonth(month, bucket); err != nil {
				return 0, err
			}
		}
	}

	return count, nil
}

// repointOrganizerRefs mirrors repointLocationRefs for organizers.
func (r *Resolver) repointOrganizerRefs(oldID, survivorID string) (int, error) {
	count := 0

	published, err := r.store.Published()
	if err != nil {
		return 0, err
	}
	changed := false
	for i := range published {
		if published[i].Organizer.References(oldID) {
			published[i].Organizer.RefID = survivorID
			published[i].UpdatedAt = r.now()
			changed = true
			count++
		}
	}
	if changed {
		if err := r.store.SavePublished(published); err != nil {
			return 0, err
		}
	}

	pending, err := r.store.Pending()
	if err != nil {
		return 0, err
	}
	changed = false
	for i := range pending {
		if pending[i].Event != nil && pending[i].Event.Organizer.References(oldID) {
			pending[i].Event.Organizer.RefID = survivorID
			changed = true
			count++
		}
	}
	if changed {
		if err := r.store.SavePending(pending); err != nil {
			return 0, err
		}
	}

	months, err := r.store.ArchiveMonths()
	if err != nil {
		return 0, err
	}
	for _, month := range months {
		bucket, err := r.store.ArchiveMonth(month)
		if err != nil {
			return 0, err
		}
		changed = false
		for i := range bucket {
			if bucket[i].Organizer.References(oldID) {
				bucket[i].Organizer.RefID = survivorID
				changed = true
				count++
			}
		}
		if changed {
			if err := r.store.SaveArchiveMonth(month, bucket); err != nil {
				return 0, err
			}
		}
	}

	return count, nil
}

func (r *Resolver) countLocationRefs(id string) (int, error) {
	count := 0
	published, err := r.store.Published()
	if err != nil {
		return 0, err
	}
	for _, event := range published {
		if event.Location.References(id) {
			count++
		}
	}
	pending, err := r.store.Pending()
	if err != nil {
		return 0, err
	}
	for _, item := range pending {
		if item.Event != nil && item.Event.Location.References(id) {
			count++
		}
	}
	months, err := r.store.ArchiveMonths()
	if err != nil {
		return 0, err
	}
	for _, month := range months {
		bucket, err := r.store.ArchiveMonth(month)
		if err != nil {
			return 0, err
		}
		for _, event := range bucket {
			if event.Location.References(id) {
				count++
			}
		}
	}
	return count, nil
}

func (r *Resolver) countOrganizerRefs(id string) (int, error) {
	count := 0
	published, err := r.store.Published()
	if err != nil {
		return 0, err
	}
	for _, event := range published {
		if event.Organizer.References(id) {
			count++
		}
	}
	pending, err := r.store.Pending()
	if err != nil {
		return 0, err
	}
	for _, item := range pending {
		if item.Event != nil && item.Event.Organizer.References(id) {
			count++
		}
	}
	months, err := r.store.ArchiveMonths()
	if err != nil {
		return 0, err
	}
	for _, month := range months {
		bucket, err := r.store.ArchiveMonth(month)
		if err != nil {
			return 0, err
		}
		for _, event := range bucket {
			if event.Organizer.References(id) {
				count++
			}
		}
	}
	return count, nil
}

// bestNameScore returns the best similarity between raw and any of the
// candidate names.
func bestNameScore(raw string, names []string) float64 {
	best := 0.0
	for _, name := range names {
		if score := nameSimilarity(raw, name); score > best {
			best = score
		}
	}
	return best
}

// nameSimilarity is a token overlap score over normalized names: exact
// matches score 1, otherwise the Jaccard index of the token sets.
func nameSimilarity(a, b string) float64 {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	tokensA := tokenSet(na)
	tokensB := tokenSet(nb)
	intersection := 0
	for token := range tokensA {
		if tokensB[token] {
			intersection++
		}
	}
	union := len(tokensA) + len(tokensB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '/':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func tokenSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, token := range strings.Fields(s) {
		set[token] = true
	}
	return set
}
