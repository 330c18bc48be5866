// Package api serves the timeline REST API over echo: dynasties, events,
// river pins, health, and the cached event-detail summaries.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/history-river/pkg/metrics"
	"github.com/Sternrassler/history-river/pkg/store"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Resolver is the cache service behind the event-details endpoints.
type Resolver interface {
	Resolve(ctx context.Context, year int, title, userContext string) (string, bool, error)
	Lookup(ctx context.Context, key string) (*store.CacheEntry, error)
	List(ctx context.Context, find *store.FindCacheEntry) ([]*store.CacheEntry, error)
}

// Config holds server configuration
type Config struct {
	// AllowedOrigins enables CORS for these origins; empty disables CORS
	AllowedOrigins []string

	// RateLimitRPS limits event-detail cache misses per client IP (0 = unlimited)
	RateLimitRPS float64

	// RateLimitBurst is the per-IP burst size
	RateLimitBurst int
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
		RateLimitRPS:   1,
		RateLimitBurst: 10,
	}
}

// Server wires the HTTP routes to the store and cache service.
type Server struct {
	echo     *echo.Echo
	store    *store.Store
	resolver Resolver
	limiter  *RateLimiter
	logger   zerolog.Logger
}

// New creates a server with all routes registered.
func New(st *store.Store, resolver Resolver, cfg Config) *Server {
	if st == nil {
		panic("store cannot be nil")
	}
	if resolver == nil {
		panic("resolver cannot be nil")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		store:    st,
		resolver: resolver,
		limiter:  NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		logger:   log.With().Str("component", "api").Logger(),
	}

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(s.accessLog())
	e.Use(requestMetrics())
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		}))
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo

	e.GET("/pins", s.ListPinsLegacy)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api")
	api.GET("/health", s.Health)
	api.GET("/dynasties", s.ListDynasties)
	api.GET("/events", s.ListEvents)
	api.GET("/events/:id", s.GetEvent)
	api.GET("/timeline", s.Timeline)
	api.GET("/riverpins", s.ListRiverPins)
	api.POST("/event-details", s.GetEventDetails)
	api.GET("/event-details/stats", s.EventDetailStats)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called. It returns nil after a
// clean shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) accessLog() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			event := s.logger.Info()
			if status >= http.StatusInternalServerError {
				event = s.logger.Error()
			}
			event.
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", status).
				Str("remote_ip", c.RealIP()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
			return nil
		}
	}
}

// errorResponse is the envelope used by the timeline endpoints.
func errorResponse(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]any{
		"success": false,
		"error":   message,
	})
}
