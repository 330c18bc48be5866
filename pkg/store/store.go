// Package store defines the persistence contract for dynasties, events,
// river pins and generated-summary cache entries, and a validating wrapper
// around a database Driver.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert collides with a live record
	// holding the same primary or unique key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when a record fails validation.
	ErrInvalidInput = errors.New("invalid input")
)

// Driver is implemented by each database backend.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	Migrate(ctx context.Context) error

	CreateDynasty(ctx context.Context, dynasty *Dynasty) error
	GetDynasty(ctx context.Context, id string) (*Dynasty, error)
	ListDynasties(ctx context.Context, find *FindDynasty) ([]*Dynasty, error)
	CountDynasties(ctx context.Context) (int, error)
	FindDynastyForYear(ctx context.Context, year int) (*Dynasty, error)

	CreateEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, id int64) (*Event, error)
	ListEvents(ctx context.Context, find *FindEvent) ([]*Event, error)
	CountEvents(ctx context.Context, find *FindEvent) (int, error)
	EventExists(ctx context.Context, year int, title string) (bool, error)
	CountEventsByDynasty(ctx context.Context) (map[string]int, error)
	EventTypeStats(ctx context.Context) ([]TypeCount, error)
	ImportanceStats(ctx context.Context) ([]ImportanceCount, error)

	CreatePin(ctx context.Context, pin *Pin) error
	ListPins(ctx context.Context, find *FindPin) ([]*Pin, error)

	// GetCacheEntry returns the live (not soft-deleted) entry for key.
	GetCacheEntry(ctx context.Context, key string) (*CacheEntry, error)
	// CreateCacheEntry inserts entry, replacing a soft-deleted row with the
	// same key. A live row with the same key yields ErrDuplicateKey.
	CreateCacheEntry(ctx context.Context, entry *CacheEntry) error
	SoftDeleteCacheEntry(ctx context.Context, key string) (bool, error)
	DeleteCacheEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListCacheEntries(ctx context.Context, find *FindCacheEntry) ([]*CacheEntry, error)
}

// Store wraps a Driver and validates records before they reach it.
type Store struct {
	driver Driver
}

// New creates a Store over driver.
func New(driver Driver) *Store {
	return &Store{driver: driver}
}

// Driver returns the underlying driver.
func (s *Store) Driver() Driver {
	return s.driver
}

// Close closes the underlying driver.
func (s *Store) Close() error {
	return s.driver.Close()
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// CreateDynasty validates and inserts a dynasty.
func (s *Store) CreateDynasty(ctx context.Context, dynasty *Dynasty) error {
	dynasty.ID = strings.TrimSpace(dynasty.ID)
	switch {
	case dynasty.ID == "":
		return invalidf("dynasty id is required")
	case len(dynasty.ID) > 50:
		return invalidf("dynasty id %q exceeds 50 characters", dynasty.ID)
	case strings.TrimSpace(dynasty.ChineseName) == "":
		return invalidf("dynasty %s: chinese name is required", dynasty.ID)
	case dynasty.EndYear < dynasty.StartYear:
		return invalidf("dynasty %s: end year %d before start year %d", dynasty.ID, dynasty.EndYear, dynasty.StartYear)
	case !colorPattern.MatchString(dynasty.Color):
		return invalidf("dynasty %s: color %q is not #rrggbb", dynasty.ID, dynasty.Color)
	}
	return s.driver.CreateDynasty(ctx, dynasty)
}

func (s *Store) GetDynasty(ctx context.Context, id string) (*Dynasty, error) {
	return s.driver.GetDynasty(ctx, id)
}

func (s *Store) ListDynasties(ctx context.Context, find *FindDynasty) ([]*Dynasty, error) {
	if find == nil {
		find = &FindDynasty{}
	}
	return s.driver.ListDynasties(ctx, find)
}

func (s *Store) CountDynasties(ctx context.Context) (int, error) {
	return s.driver.CountDynasties(ctx)
}

// FindDynastyForYear returns the latest-starting dynasty containing year,
// or ErrNotFound when no dynasty covers it.
func (s *Store) FindDynastyForYear(ctx context.Context, year int) (*Dynasty, error) {
	return s.driver.FindDynastyForYear(ctx, year)
}

// CreateEvent validates, applies defaults and inserts an event.
func (s *Store) CreateEvent(ctx context.Context, event *Event) error {
	event.Title = strings.TrimSpace(event.Title)
	if event.Type == "" {
		event.Type = EventTypePolitics
	}
	if event.Importance == 0 {
		event.Importance = DefaultImportance
	}
	switch {
	case event.Title == "":
		return invalidf("event title is required")
	case len([]rune(event.Title)) > 200:
		return invalidf("event title exceeds 200 characters")
	case !event.Type.Valid():
		return invalidf("unknown event type %q", event.Type)
	case event.Importance < MinImportance || event.Importance > MaxImportance:
		return invalidf("importance %d outside %d..%d", event.Importance, MinImportance, MaxImportance)
	}
	return s.driver.CreateEvent(ctx, event)
}

func (s *Store) GetEvent(ctx context.Context, id int64) (*Event, error) {
	return s.driver.GetEvent(ctx, id)
}

func (s *Store) ListEvents(ctx context.Context, find *FindEvent) ([]*Event, error) {
	if find == nil {
		find = &FindEvent{}
	}
	return s.driver.ListEvents(ctx, find)
}

func (s *Store) CountEvents(ctx context.Context, find *FindEvent) (int, error) {
	if find == nil {
		find = &FindEvent{}
	}
	return s.driver.CountEvents(ctx, find)
}

func (s *Store) EventExists(ctx context.Context, year int, title string) (bool, error) {
	return s.driver.EventExists(ctx, year, title)
}

func (s *Store) CountEventsByDynasty(ctx context.Context) (map[string]int, error) {
	return s.driver.CountEventsByDynasty(ctx)
}

// EventTypeStats returns a count for every known event type, zero included.
func (s *Store) EventTypeStats(ctx context.Context) ([]TypeCount, error) {
	counts, err := s.driver.EventTypeStats(ctx)
	if err != nil {
		return nil, err
	}
	byType := make(map[EventType]int, len(counts))
	for _, c := range counts {
		byType[c.Type] = c.Count
	}
	result := make([]TypeCount, 0, len(EventTypes))
	for _, t := range EventTypes {
		result = append(result, TypeCount{Type: t, Count: byType[t]})
	}
	return result, nil
}

// ImportanceStats returns a count for every importance level, zero included.
func (s *Store) ImportanceStats(ctx context.Context) ([]ImportanceCount, error) {
	counts, err := s.driver.ImportanceStats(ctx)
	if err != nil {
		return nil, err
	}
	byLevel := make(map[int]int, len(counts))
	for _, c := range counts {
		byLevel[c.Importance] = c.Count
	}
	result := make([]ImportanceCount, 0, MaxImportance)
	for i := MinImportance; i <= MaxImportance; i++ {
		result = append(result, ImportanceCount{Importance: i, Count: byLevel[i]})
	}
	return result, nil
}

// CreatePin validates and inserts a river pin. The caller assigns the ID.
func (s *Store) CreatePin(ctx context.Context, pin *Pin) error {
	switch {
	case strings.TrimSpace(pin.ID) == "":
		return invalidf("pin id is required")
	case strings.TrimSpace(pin.JobID) == "":
		return invalidf("pin job id is required")
	case strings.TrimSpace(pin.Title) == "":
		return invalidf("pin title is required")
	case pin.DoubanRating != nil && (*pin.DoubanRating < 0 || *pin.DoubanRating > 10):
		return invalidf("douban rating %.1f outside 0..10", *pin.DoubanRating)
	}
	return s.driver.CreatePin(ctx, pin)
}

func (s *Store) ListPins(ctx context.Context, find *FindPin) ([]*Pin, error) {
	if find == nil {
		find = &FindPin{}
	}
	return s.driver.ListPins(ctx, find)
}

func (s *Store) GetCacheEntry(ctx context.Context, key string) (*CacheEntry, error) {
	return s.driver.GetCacheEntry(ctx, key)
}

// CreateCacheEntry inserts a cache entry. Content must be non-empty.
func (s *Store) CreateCacheEntry(ctx context.Context, entry *CacheEntry) error {
	if entry.Key == "" {
		return invalidf("cache key is required")
	}
	if entry.Content == "" {
		return invalidf("cache content is required")
	}
	return s.driver.CreateCacheEntry(ctx, entry)
}

func (s *Store) SoftDeleteCacheEntry(ctx context.Context, key string) (bool, error) {
	return s.driver.SoftDeleteCacheEntry(ctx, key)
}

func (s *Store) DeleteCacheEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.driver.DeleteCacheEntriesBefore(ctx, cutoff)
}

func (s *Store) ListCacheEntries(ctx context.Context, find *FindCacheEntry) ([]*CacheEntry, error) {
	if find == nil {
		find = &FindCacheEntry{}
	}
	return s.driver.ListCacheEntries(ctx, find)
}
