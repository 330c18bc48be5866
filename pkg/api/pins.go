package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Sternrassler/history-river/pkg/store"
)

type riverPin struct {
	Year         int      `json:"year"`
	JobID        string   `json:"jobId"`
	Title        string   `json:"title"`
	DoubanRating *float64 `json:"doubanRating"`
}

// ListRiverPins serves GET /api/riverpins, optionally filtered by job_id.
func (s *Server) ListRiverPins(c echo.Context) error {
	pins, err := s.store.ListPins(c.Request().Context(), &store.FindPin{JobID: c.QueryParam("job_id")})
	if err != nil {
		return s.internalError(c, "list pins", err)
	}

	data := make([]riverPin, 0, len(pins))
	for _, p := range pins {
		pin := riverPin{Year: p.Year, JobID: p.JobID, Title: p.Title}
		// An unrated pin and a zero rating both render as null.
		if p.DoubanRating != nil && *p.DoubanRating != 0 {
			pin.DoubanRating = p.DoubanRating
		}
		data = append(data, pin)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

type legacyPin struct {
	ID        string  `json:"id"`
	JobID     string  `json:"job_id"`
	Title     string  `json:"title"`
	Year      int     `json:"year"`
	CreatedAt *string `json:"created_at"`
}

// ListPinsLegacy serves GET /pins, the listing used by older front-ends.
func (s *Server) ListPinsLegacy(c echo.Context) error {
	pins, err := s.store.ListPins(c.Request().Context(), nil)
	if err != nil {
		return s.internalError(c, "list pins", err)
	}

	results := make([]legacyPin, 0, len(pins))
	for _, p := range pins {
		pin := legacyPin{ID: p.ID, JobID: p.JobID, Title: p.Title, Year: p.Year}
		if !p.CreatedAt.IsZero() {
			created := p.CreatedAt.Format(time.RFC3339Nano)
			pin.CreatedAt = &created
		}
		results = append(results, pin)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"count":   len(results),
		"results": results,
	})
}
