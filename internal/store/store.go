package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kulturkalender/kulturkalender/internal/models"
)

// Collection file names under the data directory. Each collection is one
// JSON document replaced whole on every write; there is no partial update.
const (
	pendingFile    = "pending.json"
	publishedFile  = "published.json"
	trashFile      = "trash.json"
	locationsFile  = "locations.json"
	organizersFile = "organizers.json"
	archiveDir     = "archive"
)

// Store is the file-backed persistence layer. All collections live as JSON
// documents under one data directory. The store assumes a single writer
// process; the mutex serializes compound operations within it.
type Store struct {
	dataDir string
	mu      sync.Mutex
	logger  *slog.Logger
}

// New creates a store rooted at dataDir. The directory is created on first
// write, not here.
func New(dataDir string, logger *slog.Logger) *Store {
	return &Store{dataDir: dataDir, logger: logger}
}

// DataDir returns the root directory of the store.
func (s *Store) DataDir() string { return s.dataDir }

// Pending loads the editorial queue.
func (s *Store) Pending() ([]models.PendingItem, error) {
	var items []models.PendingItem
	if err := s.readJSON(pendingFile, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SavePending replaces the editorial queue.
func (s *Store) SavePending(items []models.PendingItem) error {
	return s.writeJSON(pendingFile, items)
}

// Published loads the published events.
func (s *Store) Published() ([]models.Event, error) {
	var events []models.Event
	if err := s.readJSON(publishedFile, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// SavePublished replaces the published events.
func (s *Store) SavePublished(events []models.Event) error {
	return s.writeJSON(publishedFile, events)
}

// Trash loads rejected items. Rejected items keep their provenance so a
// repeat sighting can be recognized without resurrecting the item.
func (s *Store) Trash() ([]models.PendingItem, error) {
	var items []models.PendingItem
	if err := s.readJSON(trashFile, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SaveTrash replaces the trash collection.
func (s *Store) SaveTrash(items []models.PendingItem) error {
	return s.writeJSON(trashFile, items)
}

// Locations loads the venue registry.
func (s *Store) Locations() ([]models.Location, error) {
	var locations []models.Location
	if err := s.readJSON(locationsFile, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

// SaveLocations replaces the venue registry.
func (s *Store) SaveLocations(locations []models.Location) error {
	return s.writeJSON(locationsFile, locations)
}

// Organizers loads the organizer registry.
func (s *Store) Organizers() ([]models.Organizer, error) {
	var organizers []models.Organizer
	if err := s.readJSON(organizersFile, &organizers); err != nil {
		return nil, err
	}
	return organizers, nil
}

// SaveOrganizers replaces the organizer registry.
func (s *Store) SaveOrganizers(organizers []models.Organizer) error {
	return s.writeJSON(organizersFile, organizers)
}

// ArchiveMonth loads one monthly archive bucket ("2026-07").
func (s *Store) ArchiveMonth(month string) ([]models.Event, error) {
	var events []models.Event
	if err := s.readJSON(filepath.Join(archiveDir, month+".json"), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// SaveArchiveMonth replaces one monthly archive bucket.
func (s *Store) SaveArchiveMonth(month string, events []models.Event) error {
	return s.writeJSON(filepath.Join(archiveDir, month+".json"), events)
}

// ArchiveMonths lists the archive bucket keys present on disk, sorted.
func (s *Store) ArchiveMonths() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dataDir, archiveDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	var months []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		months = append(months, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(months)
	return months, nil
}

// readJSON decodes one collection file into v. A missing file is an empty
// collection, not an error.
func (s *Store) readJSON(name string, v any) error {
	path := filepath.Join(s.dataDir, name)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// writeJSON replaces one collection file atomically: marshal, write to a
// temp file in the same directory, rename over the target.
func (s *Store) writeJSON(name string, v any) error {
	path := filepath.Join(s.dataDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
