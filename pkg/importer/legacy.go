package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/history-river/pkg/cache"
	"github.com/Sternrassler/history-river/pkg/store"
)

// CacheWriter is the persistence LoadLegacyCache writes to.
type CacheWriter interface {
	CreateCacheEntry(ctx context.Context, entry *store.CacheEntry) error
}

// LegacyReport counts what LoadLegacyCache did.
type LegacyReport struct {
	Total         int
	Migrated      int
	Skipped       int
	YearOverviews int
	Errors        int
}

// LegacyOptions tunes LoadLegacyCache.
type LegacyOptions struct {
	// DryRun classifies entries without writing them.
	DryRun bool

	// Now supplies the fallback year for texts without one.
	Now func() time.Time
}

// ParseLegacyCache decodes a JSON object mapping cache keys to texts, as
// written by the earlier file-based cache.
func ParseLegacyCache(data []byte) (map[string]string, error) {
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &ParseError{Array: "legacy cache", Err: err}
	}
	return entries, nil
}

var (
	yearPatterns = []*regexp.Regexp{
		regexp.MustCompile(`约?公元前?(\d+)年`),
		regexp.MustCompile(`(\d{3,4})年`),
		regexp.MustCompile(`公元(\d+)年`),
	}

	overviewPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{3,4}年，?(正值|是|处于)`),
		regexp.MustCompile(`^约?前?\d{3,4}年，?(正值|是|处于)`),
		regexp.MustCompile(`^这[一个]时期`),
		regexp.MustCompile(`^这[一个]年[，。]`),
		regexp.MustCompile(`^此时`),
		regexp.MustCompile(`^这[个一]阶段`),
	}

	yearPrefix = regexp.MustCompile(`^约?前?\d+年，?`)
)

// prefixRunes returns at most n leading runes of s.
func prefixRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

// ExtractYear finds the year a legacy text is about. Years marked 公元前 or
// 前 are negative. ok is false when the text names no year.
func ExtractYear(content string) (year int, ok bool) {
	head := prefixRunes(content, 200)
	for _, pattern := range yearPatterns {
		loc := pattern.FindStringSubmatchIndex(head)
		if loc == nil {
			continue
		}
		n, err := strconv.Atoi(head[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		before := head[:loc[2]]
		if strings.Contains(before, "公元前") || strings.HasSuffix(before, "前") {
			return -n, true
		}
		return n, true
	}
	return 0, false
}

// ExtractTitle derives an event title from the first sentence of a legacy
// text. It returns "" for texts that read as a year overview.
func ExtractTitle(content string) string {
	head := prefixRunes(content, 100)
	for _, pattern := range overviewPatterns {
		if pattern.MatchString(head) {
			return ""
		}
	}
	first, _, _ := strings.Cut(content, "。")
	title := yearPrefix.ReplaceAllString(strings.TrimSpace(first), "")
	return prefixRunes(title, 200)
}

// LoadLegacyCache imports legacy entries under their existing keys. Test
// fixtures and year overviews are skipped, as are keys already present.
func LoadLegacyCache(ctx context.Context, w CacheWriter, entries map[string]string, opts LegacyOptions) (LegacyReport, error) {
	logger := log.With().Str("component", "legacy-import").Logger()
	if opts.Now == nil {
		opts.Now = time.Now
	}
	report := LegacyReport{Total: len(entries)}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		content := entries[key]
		switch {
		case key == "test" || strings.HasPrefix(key, "test-"):
			report.Skipped++
			continue
		case strings.Contains(key, cache.YearOverviewTitle):
			report.YearOverviews++
			continue
		}

		title := ExtractTitle(content)
		if title == "" {
			report.YearOverviews++
			continue
		}
		year, ok := ExtractYear(content)
		if !ok {
			year = opts.Now().Year()
			logger.Warn().Str("key", key).Int("year", year).Msg("No year in text, using current year")
		}

		if opts.DryRun {
			report.Migrated++
			continue
		}

		err := w.CreateCacheEntry(ctx, &store.CacheEntry{
			Key:     key,
			Year:    year,
			Title:   title,
			Content: content,
			IsFresh: true,
		})
		switch {
		case err == nil:
			report.Migrated++
		case errors.Is(err, store.ErrDuplicateKey):
			report.Skipped++
		case errors.Is(err, store.ErrInvalidInput):
			report.Errors++
			logger.Warn().Err(err).Str("key", key).Msg("Skipping invalid legacy entry")
		default:
			return report, fmt.Errorf("import legacy entry %s: %w", key, err)
		}
	}

	logger.Info().
		Int("total", report.Total).
		Int("migrated", report.Migrated).
		Int("skipped", report.Skipped).
		Int("year_overviews", report.YearOverviews).
		Int("errors", report.Errors).
		Bool("dry_run", opts.DryRun).
		Msg("Legacy cache import complete")

	return report, nil
}
