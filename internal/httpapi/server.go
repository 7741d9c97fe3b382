// Package httpapi serves the article store and user feeds over HTTP with JSend envelopes.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/feedcore/internal/feed"
	"horse.fit/feedcore/internal/globaltime"
	"horse.fit/feedcore/internal/pipeline"
	"horse.fit/feedcore/internal/store"
)

const maxPayloadBytes = 4 << 20

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// PublicURL is the base used for links in generated Atom documents.
	PublicURL string
}

type Server struct {
	store    *store.Store
	pipeline *pipeline.Service
	feeds    *feed.Writer
	logger   zerolog.Logger
	opts     Options
}

func NewServer(st *store.Store, svc *pipeline.Service, feeds *feed.Writer, logger zerolog.Logger, opts Options) *Server {
	if strings.TrimSpace(opts.Host) == "" {
		opts.Host = "0.0.0.0"
	}
	if opts.Port <= 0 {
		opts.Port = 8090
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if strings.TrimSpace(opts.PublicURL) == "" {
		opts.PublicURL = fmt.Sprintf("http://localhost:%d", opts.Port)
	}
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")

	return &Server{
		store:    st,
		pipeline: svc,
		feeds:    feeds,
		logger:   logger.With().Str("component", "httpapi").Logger(),
		opts:     opts,
	}
}

// Handler builds the routed Echo instance.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Info()
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.POST("/articles", s.handleIngest)
	api.GET("/articles", s.handleArticlesByID)
	api.GET("/articles/recent", s.handleRecent)
	api.GET("/articles/since", s.handleSince)
	api.GET("/articles/lookup", s.handleLookup)
	api.GET("/feeds/:user_id", s.handleFeed)
	api.GET("/feeds/:user_id/atom", s.handleFeedAtom)

	return e
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("feedcore api started")
	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("feedcore api stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if text, ok := he.Message.(string); ok && strings.TrimSpace(text) != "" {
			message = text
		} else if text := http.StatusText(status); text != "" {
			message = text
		}
	}

	if status >= 500 {
		s.logger.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("unhandled request error")
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()
	storeStatus := s.store.TestConnection(ctx)

	feedStatus := map[string]any{"status": store.StatusConnected}
	if s.feeds != nil {
		if err := s.feeds.Ping(ctx); err != nil {
			feedStatus = map[string]any{"status": store.StatusFailed, "error": err.Error()}
		}
	}

	data := map[string]any{
		"service": "feedcore",
		"time":    globaltime.UTC(),
		"store":   storeStatus,
		"feed":    feedStatus,
	}
	if storeStatus.Status != store.StatusConnected || feedStatus["status"] != store.StatusConnected {
		return fail(c, http.StatusServiceUnavailable, "Dependency unavailable", data)
	}
	return success(c, data)
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}

func parseTimeFilter(raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		utc := ts.UTC()
		return &utc, nil
	}
	if day, err := time.Parse("2006-01-02", trimmed); err == nil {
		utc := day.UTC()
		return &utc, nil
	}
	return nil, fmt.Errorf("invalid time format")
}
