package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/feedcore/internal/store"
	"horse.fit/feedcore/internal/urlnorm"
	payloadschema "horse.fit/feedcore/schema"
)

const maxSinceHours = 24 * 365

func (s *Server) handleIngest(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPayloadBytes+1))
	if err != nil {
		return fail(c, http.StatusBadRequest, "Failed to read request body", nil)
	}
	if len(body) > maxPayloadBytes {
		return fail(c, http.StatusRequestEntityTooLarge, "Payload too large", nil)
	}

	inputs, err := payloadschema.ValidateArticlePayload(body)
	if err != nil {
		return failValidation(c, map[string]string{"payload": err.Error()})
	}

	result := s.pipeline.Ingest(c.Request().Context(), inputs)
	status := http.StatusOK
	if len(result.Created) > 0 {
		status = http.StatusCreated
	}
	return successWithStatus(c, status, result)
}

func (s *Server) handleArticlesByID(c echo.Context) error {
	raw := strings.TrimSpace(c.QueryParam("ids"))
	if raw == "" {
		return failValidation(c, map[string]string{"ids": "is required"})
	}

	ids := make([]string, 0)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	items, err := s.store.FetchByIDs(c.Request().Context(), ids)
	if err != nil {
		return storeError(c, err, "Failed to load articles")
	}
	return success(c, map[string]any{"items": items})
}

func (s *Server) handleRecent(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), store.DefaultRecentLimit, 1, store.MaxRecentLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}
	before, err := parseTimeFilter(c.QueryParam("before"))
	if err != nil {
		return failValidation(c, map[string]string{"before": "must be RFC3339 or YYYY-MM-DD"})
	}

	q := store.RecentQuery{
		Limit:  limit,
		Before: before,
		Source: strings.TrimSpace(c.QueryParam("source")),
	}
	items, err := s.store.FindRecent(c.Request().Context(), q)
	if err != nil {
		return storeError(c, err, "Failed to load recent articles")
	}
	return success(c, map[string]any{
		"items": items,
		"filters": map[string]any{
			"limit":  q.Limit,
			"before": q.Before,
			"source": q.Source,
		},
	})
}

func (s *Server) handleSince(c echo.Context) error {
	hours, err := parsePositiveInt(c.QueryParam("hours"), 24, 0, maxSinceHours)
	if err != nil {
		return failValidation(c, map[string]string{"hours": err.Error()})
	}

	items, err := s.store.FindSince(c.Request().Context(), hours)
	if err != nil {
		return storeError(c, err, "Failed to load articles")
	}
	return success(c, map[string]any{"items": items, "hours": hours})
}

func (s *Server) handleLookup(c echo.Context) error {
	rawURL := strings.TrimSpace(c.QueryParam("url"))
	if rawURL == "" {
		return failValidation(c, map[string]string{"url": "is required"})
	}

	found, err := s.store.FindByURL(c.Request().Context(), rawURL)
	switch {
	case errors.Is(err, urlnorm.ErrMalformedURL):
		return failValidation(c, map[string]string{"url": "must be an absolute URL"})
	case err != nil:
		return storeError(c, err, "Failed to look up article")
	case found == nil:
		return failNotFound(c, "Article not found")
	}
	return success(c, found)
}
