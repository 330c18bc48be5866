package cache

import (
	"crypto/sha256"
	"fmt"
	"strconv"
)

// YearOverviewTitle stands in for an empty title, marking a summary of the
// whole year rather than of one event.
const YearOverviewTitle = "__year__"

// CacheKey identifies one generated summary.
type CacheKey struct {
	// Title is the event title; empty means year overview.
	Title string

	// Year is the historical year, negative for BCE.
	Year int
}

// Source returns the hashed input: "<title or __year__>|<year>".
//
// Example:
//
//	__year__|-2070
//	安史之乱|755
func (k CacheKey) Source() string {
	title := k.Title
	if title == "" {
		title = YearOverviewTitle
	}
	return title + "|" + strconv.Itoa(k.Year)
}

// String returns the lowercase hex SHA-256 of Source. Stored rows are keyed
// by this value, so the format must not change.
func (k CacheKey) String() string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(k.Source())))
}

// DeriveKey is shorthand for CacheKey{Title: title, Year: year}.String().
func DeriveKey(title string, year int) string {
	return CacheKey{Title: title, Year: year}.String()
}
