package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Sternrassler/history-river/pkg/cache"
	"github.com/Sternrassler/history-river/pkg/store"
)

// Event-detail error messages. Clients match on these strings.
const (
	msgNoData      = "No data provided"
	msgMissingYear = "Missing required parameter: year"
	msgInvalidYear = "Invalid year format, must be integer"
	msgInvalidJSON = "Invalid JSON body"
	msgFetchFailed = "Failed to fetch from generator API: "
	msgInternal    = "Internal server error: "
)

const maxDetailsBytes = 64 << 10

var errInvalidYear = errors.New(msgInvalidYear)

// EventDetailsResponse is the body of a successful event-details request.
type EventDetailsResponse struct {
	Text       string `json:"text"`
	Cached     bool   `json:"cached"`
	Year       int    `json:"year"`
	EventTitle string `json:"event_title"`
}

type eventDetailsRequest struct {
	year       int
	eventTitle string
	context    string
}

// GetEventDetails serves POST /api/event-details. It accepts a JSON object
// or a form with year, event_title and context, and answers from the cache,
// generating the text on a miss. Only misses count against the per-IP rate
// limit.
func (s *Server) GetEventDetails(c echo.Context) error {
	req, msg := readEventDetailsRequest(c)
	if msg != "" {
		return detailsError(c, http.StatusBadRequest, msg)
	}
	ctx := c.Request().Context()

	if s.limiter.Enabled() {
		entry, err := s.resolver.Lookup(ctx, cache.DeriveKey(req.eventTitle, req.year))
		if err == nil {
			return c.JSON(http.StatusOK, EventDetailsResponse{
				Text:       entry.Content,
				Cached:     true,
				Year:       req.year,
				EventTitle: req.eventTitle,
			})
		}
		if errors.Is(err, cache.ErrCacheMiss) && !s.limiter.Allow(c.RealIP()) {
			return s.limiter.Reject(c)
		}
	}

	text, cached, err := s.resolver.Resolve(ctx, req.year, req.eventTitle, req.context)
	if err != nil {
		if errors.Is(err, cache.ErrFetchFailed) {
			cause := strings.TrimPrefix(err.Error(), cache.ErrFetchFailed.Error()+": ")
			return detailsError(c, http.StatusInternalServerError, msgFetchFailed+cause)
		}
		s.logger.Error().Err(err).Int("year", req.year).Str("event_title", req.eventTitle).Msg("Event details failed")
		return detailsError(c, http.StatusInternalServerError, msgInternal+err.Error())
	}

	return c.JSON(http.StatusOK, EventDetailsResponse{
		Text:       text,
		Cached:     cached,
		Year:       req.year,
		EventTitle: req.eventTitle,
	})
}

func detailsError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}

// readEventDetailsRequest decodes and validates the request. A non-empty
// message is the client error to report.
func readEventDetailsRequest(c echo.Context) (eventDetailsRequest, string) {
	var req eventDetailsRequest

	fields, msg := readFields(c)
	if msg != "" {
		return req, msg
	}
	if len(fields) == 0 {
		return req, msgNoData
	}

	rawYear, ok := fields["year"]
	if !ok || rawYear == nil {
		return req, msgMissingYear
	}
	year, err := parseYear(rawYear)
	if err != nil {
		return req, msgInvalidYear
	}
	req.year = year

	if req.eventTitle, ok = optionalString(fields["event_title"]); !ok {
		return req, "event_title must be a string"
	}
	if req.context, ok = optionalString(fields["context"]); !ok {
		return req, "context must be a string"
	}
	return req, ""
}

func readFields(c echo.Context) (map[string]any, string) {
	r := c.Request()
	ct := r.Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ct, echo.MIMEApplicationForm) || strings.HasPrefix(ct, echo.MIMEMultipartForm) {
		form, err := c.FormParams()
		if err != nil {
			return nil, msgInvalidJSON
		}
		fields := make(map[string]any, len(form))
		for k, v := range form {
			if len(v) > 0 {
				fields[k] = v[len(v)-1]
			}
		}
		return fields, ""
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDetailsBytes))
	if err != nil {
		return nil, msgInvalidJSON
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ""
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, msgInvalidJSON
	}
	return fields, ""
}

// parseYear accepts JSON integers, integral floats such as 755.0, and
// strings holding a base-10 integer.
func parseYear(v any) (int, error) {
	switch year := v.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(year.String(), 10, 0); err == nil {
			return int(n), nil
		}
		f, err := year.Float64()
		if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return 0, errInvalidYear
		}
		return int(f), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(year))
		if err != nil {
			return 0, errInvalidYear
		}
		return n, nil
	default:
		return 0, errInvalidYear
	}
}

func optionalString(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", true
	case string:
		return s, true
	default:
		return "", false
	}
}

// CacheStats summarises stored summaries for one year or title.
type CacheStats struct {
	Total           int        `json:"total"`
	Live            int        `json:"live"`
	Deleted         int        `json:"deleted"`
	YearOverviews   int        `json:"year_overviews"`
	LastUpdatedAt   *time.Time `json:"last_updated_at"`
	LastUpdatedYear *int       `json:"last_updated_year"`
}

// EventDetailStats serves GET /api/event-details/stats with optional year
// and event_title filters. Soft-deleted entries are counted separately.
func (s *Server) EventDetailStats(c echo.Context) error {
	find := &store.FindCacheEntry{IncludeDeleted: true}

	if raw := c.QueryParam("year"); raw != "" {
		year, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return errorResponse(c, http.StatusBadRequest, msgInvalidYear)
		}
		find.Year = &year
	}
	if c.QueryParams().Has("event_title") {
		title := c.QueryParam("event_title")
		find.Title = &title
	}

	entries, err := s.resolver.List(c.Request().Context(), find)
	if err != nil {
		return s.internalError(c, "list cache entries", err)
	}

	var stats CacheStats
	for _, e := range entries {
		stats.Total++
		if e.IsDeleted {
			stats.Deleted++
		} else {
			stats.Live++
		}
		if e.Title == "" {
			stats.YearOverviews++
		}
	}
	// Entries are listed newest first.
	if len(entries) > 0 {
		updated := entries[0].UpdatedAt.UTC()
		year := entries[0].Year
		stats.LastUpdatedAt = &updated
		stats.LastUpdatedYear = &year
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    stats,
	})
}
