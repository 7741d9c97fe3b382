package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"

	"horse.fit/feedcore/internal/article"
	"horse.fit/feedcore/internal/feed"
	"horse.fit/feedcore/internal/globaltime"
)

const maxFeedLimit = 200

type feedItem struct {
	Score   float64         `json:"score"`
	Article article.Article `json:"article"`
}

// rankedFeed reads a user's feed and hydrates it with the stored articles. Members whose
// article no longer exists are dropped.
func (s *Server) rankedFeed(ctx context.Context, userID string, limit int) ([]feedItem, error) {
	entries, err := s.feeds.Top(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []feedItem{}, nil
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ArticleID)
	}
	articles, err := s.store.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]article.Article, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}

	items := make([]feedItem, 0, len(entries))
	for _, e := range entries {
		if a, ok := byID[e.ArticleID]; ok {
			items = append(items, feedItem{Score: e.Score, Article: a})
		}
	}
	return items, nil
}

func (s *Server) feedParams(c echo.Context) (string, int, map[string]string) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		return "", 0, map[string]string{"user_id": "is required"}
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), feed.DefaultTopLimit, 1, maxFeedLimit)
	if err != nil {
		return "", 0, map[string]string{"limit": err.Error()}
	}
	return userID, limit, nil
}

func (s *Server) handleFeed(c echo.Context) error {
	userID, limit, invalid := s.feedParams(c)
	if invalid != nil {
		return failValidation(c, invalid)
	}

	items, err := s.rankedFeed(c.Request().Context(), userID, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("load feed failed")
		return storeError(c, err, "Failed to load feed")
	}
	return success(c, map[string]any{
		"user_id": userID,
		"items":   items,
	})
}

func (s *Server) handleFeedAtom(c echo.Context) error {
	userID, limit, invalid := s.feedParams(c)
	if invalid != nil {
		return failValidation(c, invalid)
	}

	items, err := s.rankedFeed(c.Request().Context(), userID, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("load feed failed")
		return storeError(c, err, "Failed to load feed")
	}

	atom, err := s.buildAtom(userID, items).ToAtom()
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("render atom feed failed")
		return internalError(c, "Failed to render feed")
	}
	return c.Blob(http.StatusOK, "application/atom+xml; charset=utf-8", []byte(atom))
}

func (s *Server) buildAtom(userID string, items []feedItem) *feeds.Feed {
	self := s.opts.PublicURL + "/api/v1/feeds/" + userID + "/atom"
	updated := globaltime.UTC()
	if len(items) > 0 {
		updated = items[0].Article.UpdatedAt
	}

	out := &feeds.Feed{
		Title:       "feedcore: " + userID,
		Description: "Ranked articles for " + userID,
		Link:        &feeds.Link{Href: self, Rel: "self", Type: "application/atom+xml"},
		Id:          self,
		Updated:     updated,
	}
	for _, item := range items {
		a := item.Article
		entry := &feeds.Item{
			Title:       a.Title,
			Link:        &feeds.Link{Href: a.URL, Rel: "alternate", Type: "text/html"},
			Id:          "urn:feedcore:article:" + a.ID,
			Description: a.Summary,
			Created:     a.PublishedAt,
			Updated:     a.UpdatedAt,
		}
		if a.Source != "" {
			entry.Author = &feeds.Author{Name: a.Source}
		}
		out.Items = append(out.Items, entry)
	}
	return out
}
