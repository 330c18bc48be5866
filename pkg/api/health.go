package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health serves GET /api/health. The store must answer both count queries
// for the service to report healthy.
func (s *Server) Health(c echo.Context) error {
	ctx := c.Request().Context()

	dynasties, err := s.store.CountDynasties(ctx)
	if err != nil {
		return s.unhealthy(c, err)
	}
	events, err := s.store.CountEvents(ctx, nil)
	if err != nil {
		return s.unhealthy(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"status":  "healthy",
		"data": map[string]any{
			"dynasty_count": dynasties,
			"event_count":   events,
			"version":       Version,
		},
	})
}

func (s *Server) unhealthy(c echo.Context, err error) error {
	s.logger.Error().Err(err).Msg("Health check failed")
	return c.JSON(http.StatusInternalServerError, map[string]any{
		"success": false,
		"status":  "unhealthy",
		"error":   err.Error(),
	})
}
