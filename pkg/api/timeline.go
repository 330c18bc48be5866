package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Sternrassler/history-river/pkg/store"
)

const (
	defaultDynastiesPerPage = 50
	defaultEventsPerPage    = 100

	// timelineMaxImportance limits the chart to the three highest levels.
	timelineMaxImportance = 3
)

// DynastyResponse is one item of the dynasty listing.
type DynastyResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ChineseName string `json:"chineseName"`
	StartYear   int    `json:"startYear"`
	EndYear     int    `json:"endYear"`
	Color       string `json:"color"`
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	EventCount  int    `json:"eventCount"`
}

// EventDynasty is the dynasty embedded in an event.
type EventDynasty struct {
	ID          string `json:"id"`
	ChineseName string `json:"chineseName"`
	Name        string `json:"name"`
	StartYear   *int   `json:"startYear,omitempty"`
	EndYear     *int   `json:"endYear,omitempty"`
}

// EventResponse is an event in listings and detail views.
type EventResponse struct {
	ID                int64         `json:"id"`
	Year              int           `json:"year"`
	Title             string        `json:"title"`
	Type              string        `json:"type"`
	TypeDisplay       string        `json:"typeDisplay"`
	Importance        int           `json:"importance"`
	ImportanceDisplay string        `json:"importanceDisplay"`
	Description       string        `json:"description"`
	Dynasty           *EventDynasty `json:"dynasty"`
	SourceReference   string        `json:"sourceReference"`
	CreatedAt         string        `json:"createdAt,omitempty"`
	UpdatedAt         string        `json:"updatedAt,omitempty"`
}

type listResponse struct {
	Success    bool       `json:"success"`
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ListDynasties serves GET /api/dynasties.
func (s *Server) ListDynasties(c echo.Context) error {
	ctx := c.Request().Context()

	perPage, ok := parsePerPage(c.QueryParam("per_page"), defaultDynastiesPerPage)
	if !ok {
		return errorResponse(c, http.StatusBadRequest, "per_page must be a positive integer")
	}

	total, err := s.store.CountDynasties(ctx)
	if err != nil {
		return s.internalError(c, "count dynasties", err)
	}
	page := paginate(c.QueryParam("page"), perPage, total)

	dynasties, err := s.store.ListDynasties(ctx, &store.FindDynasty{Limit: perPage, Offset: page.Offset()})
	if err != nil {
		return s.internalError(c, "list dynasties", err)
	}
	counts, err := s.store.CountEventsByDynasty(ctx)
	if err != nil {
		return s.internalError(c, "count events by dynasty", err)
	}

	data := make([]DynastyResponse, 0, len(dynasties))
	for _, d := range dynasties {
		data = append(data, DynastyResponse{
			ID:          d.ID,
			Name:        d.Name,
			ChineseName: d.ChineseName,
			StartYear:   d.StartYear,
			EndYear:     d.EndYear,
			Color:       d.Color,
			Description: d.Description,
			Duration:    d.Duration(),
			EventCount:  counts[d.ID],
		})
	}

	return c.JSON(http.StatusOK, listResponse{Success: true, Data: data, Pagination: page})
}

// ListEvents serves GET /api/events.
func (s *Server) ListEvents(c echo.Context) error {
	ctx := c.Request().Context()

	find, err := parseEventFilter(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err.Error())
	}
	perPage, ok := parsePerPage(c.QueryParam("per_page"), defaultEventsPerPage)
	if !ok {
		return errorResponse(c, http.StatusBadRequest, "per_page must be a positive integer")
	}

	total, err := s.store.CountEvents(ctx, find)
	if err != nil {
		return s.internalError(c, "count events", err)
	}
	page := paginate(c.QueryParam("page"), perPage, total)

	find.Limit = perPage
	find.Offset = page.Offset()
	events, err := s.store.ListEvents(ctx, find)
	if err != nil {
		return s.internalError(c, "list events", err)
	}

	data := make([]EventResponse, 0, len(events))
	for _, e := range events {
		data = append(data, toEventResponse(e, false))
	}

	return c.JSON(http.StatusOK, listResponse{Success: true, Data: data, Pagination: page})
}

// GetEvent serves GET /api/events/:id.
func (s *Server) GetEvent(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return errorResponse(c, http.StatusNotFound, "Event not found")
	}

	event, err := s.store.GetEvent(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return errorResponse(c, http.StatusNotFound, "Event not found")
	}
	if err != nil {
		return s.internalError(c, "get event", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    toEventResponse(event, true),
	})
}

type timelineDynasty struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartYear int    `json:"startYear"`
	EndYear   int    `json:"endYear"`
	Color     string `json:"color"`
	Power     int    `json:"power"`
}

type timelineEvent struct {
	ID         int64   `json:"id"`
	Year       int     `json:"year"`
	Title      string  `json:"title"`
	Type       string  `json:"type"`
	Importance int     `json:"importance"`
	DynastyID  *string `json:"dynastyId"`
}

type countDisplay struct {
	Display string `json:"display"`
	Count   int    `json:"count"`
}

type timelineStats struct {
	TotalDynasties  int                     `json:"totalDynasties"`
	TotalEvents     int                     `json:"totalEvents"`
	EventTypes      map[string]countDisplay `json:"eventTypes"`
	ImportanceStats map[string]countDisplay `json:"importanceStats"`
}

type timelineData struct {
	Dynasties []timelineDynasty `json:"dynasties"`
	Events    []timelineEvent   `json:"events"`
	Stats     timelineStats     `json:"stats"`
}

// Timeline serves GET /api/timeline, the data set drawn by the river chart.
func (s *Server) Timeline(c echo.Context) error {
	ctx := c.Request().Context()

	dynasties, err := s.store.ListDynasties(ctx, nil)
	if err != nil {
		return s.internalError(c, "list dynasties", err)
	}
	maxImportance := timelineMaxImportance
	events, err := s.store.ListEvents(ctx, &store.FindEvent{MaxImportance: &maxImportance})
	if err != nil {
		return s.internalError(c, "list events", err)
	}
	typeStats, err := s.store.EventTypeStats(ctx)
	if err != nil {
		return s.internalError(c, "event type stats", err)
	}
	importanceStats, err := s.store.ImportanceStats(ctx)
	if err != nil {
		return s.internalError(c, "importance stats", err)
	}

	data := timelineData{
		Dynasties: make([]timelineDynasty, 0, len(dynasties)),
		Events:    make([]timelineEvent, 0, len(events)),
		Stats: timelineStats{
			EventTypes:      make(map[string]countDisplay, len(typeStats)),
			ImportanceStats: make(map[string]countDisplay, len(importanceStats)),
		},
	}
	for _, d := range dynasties {
		data.Dynasties = append(data.Dynasties, timelineDynasty{
			ID:        d.ID,
			Name:      d.ChineseName,
			StartYear: d.StartYear,
			EndYear:   d.EndYear,
			Color:     d.Color,
			Power:     DynastyPower(d),
		})
	}
	for _, e := range events {
		data.Events = append(data.Events, timelineEvent{
			ID:         e.ID,
			Year:       e.Year,
			Title:      e.Title,
			Type:       string(e.Type),
			Importance: e.Importance,
			DynastyID:  e.DynastyID,
		})
	}
	for _, t := range typeStats {
		data.Stats.EventTypes[string(t.Type)] = countDisplay{Display: t.Type.DisplayName(), Count: t.Count}
	}
	for _, i := range importanceStats {
		data.Stats.ImportanceStats[strconv.Itoa(i.Importance)] = countDisplay{
			Display: store.ImportanceDisplayName(i.Importance),
			Count:   i.Count,
		}
	}
	data.Stats.TotalDynasties = len(data.Dynasties)
	data.Stats.TotalEvents = len(data.Events)

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

var dynastyWeights = map[string]int{
	"tang": 90, "han_west": 90, "han_east": 90, "qing": 90, "yuan": 90, "prc": 90, "ming": 90,
	"song": 70, "sui": 70,
	"qin": 60, "shang": 60, "zhou_west": 60, "zhou_east": 60,
}

const defaultDynastyWeight = 50

// DynastyPower is the band height of a dynasty on the chart: its weight,
// reduced for short dynasties, never below 10.
func DynastyPower(d *store.Dynasty) int {
	weight, ok := dynastyWeights[d.ID]
	if !ok {
		weight = defaultDynastyWeight
	}
	return min(weight, max(10, floorDiv(d.Duration(), 10)+weight/2))
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func parseEventFilter(c echo.Context) (*store.FindEvent, error) {
	find := &store.FindEvent{}

	intParam := func(name string) (*int, error) {
		raw := strings.TrimSpace(c.QueryParam(name))
		if raw == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New(name + " must be an integer")
		}
		return &n, nil
	}

	var err error
	if find.YearFrom, err = intParam("year_from"); err != nil {
		return nil, err
	}
	if find.YearTo, err = intParam("year_to"); err != nil {
		return nil, err
	}
	if find.Importance, err = intParam("importance"); err != nil {
		return nil, err
	}
	if v := c.QueryParam("type"); v != "" {
		t := store.EventType(v)
		find.Type = &t
	}
	if v := c.QueryParam("dynasty_id"); v != "" {
		find.DynastyID = &v
	}
	find.Search = c.QueryParam("search")
	return find, nil
}

func toEventResponse(e *store.Event, detail bool) EventResponse {
	resp := EventResponse{
		ID:                e.ID,
		Year:              e.Year,
		Title:             e.Title,
		Type:              string(e.Type),
		TypeDisplay:       e.Type.DisplayName(),
		Importance:        e.Importance,
		ImportanceDisplay: store.ImportanceDisplayName(e.Importance),
		Description:       e.Description,
		SourceReference:   e.SourceReference,
	}
	if e.Dynasty != nil {
		resp.Dynasty = &EventDynasty{
			ID:          e.Dynasty.ID,
			ChineseName: e.Dynasty.ChineseName,
			Name:        e.Dynasty.Name,
		}
		if detail {
			start, end := e.Dynasty.StartYear, e.Dynasty.EndYear
			resp.Dynasty.StartYear = &start
			resp.Dynasty.EndYear = &end
		}
	}
	if detail {
		resp.CreatedAt = e.CreatedAt.Format(time.RFC3339Nano)
		resp.UpdatedAt = e.UpdatedAt.Format(time.RFC3339Nano)
	}
	return resp
}

func (s *Server) internalError(c echo.Context, op string, err error) error {
	s.logger.Error().Err(err).Str("operation", op).Msg("Request failed")
	return errorResponse(c, http.StatusInternalServerError, err.Error())
}
