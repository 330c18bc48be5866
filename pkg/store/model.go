package store

import (
	"fmt"
	"time"
)

// Dynasty is a historical period drawn as a band on the timeline.
type Dynasty struct {
	ID          string
	Name        string
	ChineseName string
	StartYear   int
	EndYear     int
	Color       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Duration returns the span of the dynasty in years.
func (d *Dynasty) Duration() int {
	return d.EndYear - d.StartYear
}

// ContainsYear reports whether year falls inside the dynasty (inclusive).
func (d *Dynasty) ContainsYear(year int) bool {
	return d.StartYear <= year && year <= d.EndYear
}

// EventType classifies a historical event.
type EventType string

const (
	EventTypeWar      EventType = "war"
	EventTypeCulture  EventType = "culture"
	EventTypePolitics EventType = "politics"
	EventTypeScience  EventType = "science"
)

// EventTypes lists every event type in display order.
var EventTypes = []EventType{EventTypeWar, EventTypeCulture, EventTypePolitics, EventTypeScience}

var eventTypeNames = map[EventType]string{
	EventTypeWar:      "战争",
	EventTypeCulture:  "文化",
	EventTypePolitics: "政治",
	EventTypeScience:  "科技",
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	_, ok := eventTypeNames[t]
	return ok
}

// DisplayName returns the Chinese label of the event type.
func (t EventType) DisplayName() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return string(t)
}

// Importance bounds. 1 is the most important.
const (
	MinImportance     = 1
	MaxImportance     = 5
	DefaultImportance = 3
)

var importanceNames = map[int]string{
	1: "极其重要",
	2: "非常重要",
	3: "重要",
	4: "一般",
	5: "次要",
}

var circledNumbers = map[int]string{1: "①", 2: "②", 3: "③", 4: "④", 5: "⑤"}

// ImportanceName returns the bare Chinese label for an importance level.
func ImportanceName(importance int) string {
	return importanceNames[importance]
}

// ImportanceDisplayName returns the circled-number label, e.g. "①极其重要".
func ImportanceDisplayName(importance int) string {
	name, ok := importanceNames[importance]
	if !ok {
		return fmt.Sprintf("%d", importance)
	}
	return circledNumbers[importance] + name
}

// DynastyRef is the slice of a dynasty embedded in event listings.
type DynastyRef struct {
	ID          string
	Name        string
	ChineseName string
	StartYear   int
	EndYear     int
}

// Event is a historical event.
type Event struct {
	ID              int64
	Year            int
	Title           string
	Type            EventType
	Description     string
	Importance      int
	DynastyID       *string
	SourceReference string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Dynasty is populated by reads that join the dynasties table.
	Dynasty *DynastyRef
}

// Pin is a podcast/book marker placed on the river at a year.
type Pin struct {
	ID           string
	JobID        string
	Title        string
	Year         int
	DoubanRating *float64
	CreatedAt    time.Time
}

// CacheEntry is one generated summary keyed by its content hash.
type CacheEntry struct {
	Key       string
	Year      int
	Title     string
	Context   string
	Content   string
	IsFresh   bool
	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FindDynasty filters dynasty listings.
type FindDynasty struct {
	Limit  int
	Offset int
}

// FindEvent filters event listings. Nil fields are not applied.
type FindEvent struct {
	YearFrom      *int
	YearTo        *int
	Type          *EventType
	Importance    *int
	MaxImportance *int
	DynastyID     *string
	Search        string

	Limit  int
	Offset int
}

// FindPin filters pin listings.
type FindPin struct {
	JobID string
}

// FindCacheEntry filters cache listings used for statistics.
type FindCacheEntry struct {
	Year           *int
	Title          *string
	IncludeDeleted bool
	Limit          int
}

// TypeCount is the number of events of one type.
type TypeCount struct {
	Type  EventType
	Count int
}

// ImportanceCount is the number of events at one importance level.
type ImportanceCount struct {
	Importance int
	Count      int
}
