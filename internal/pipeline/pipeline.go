// Package pipeline runs an ingest batch end to end: store upsert, user matching, ranking and
// feed fanout for every article the batch created or changed.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/feedcore/internal/article"
	"horse.fit/feedcore/internal/feed"
	"horse.fit/feedcore/internal/globaltime"
	"horse.fit/feedcore/internal/matcher"
	"horse.fit/feedcore/internal/ranking"
	"horse.fit/feedcore/internal/store"
)

type FeedPusher interface {
	Push(ctx context.Context, articleID string, userIDs []string, score float64) feed.PushResult
}

type Service struct {
	store   *store.Store
	matcher matcher.Matcher
	feeds   FeedPusher
	logger  zerolog.Logger
}

func New(st *store.Store, m matcher.Matcher, feeds FeedPusher, logger zerolog.Logger) *Service {
	if m == nil {
		m = matcher.None{}
	}
	return &Service{
		store:   st,
		matcher: m,
		feeds:   feeds,
		logger:  logger.With().Str("component", "pipeline").Logger(),
	}
}

// Fanout is the feed delivery outcome for one written article.
type Fanout struct {
	ArticleID  string             `json:"articleId"`
	Matched    int                `json:"matched"`
	Succeeded  []string           `json:"succeeded"`
	Failed     []feed.UserFailure `json:"failed,omitempty"`
	MatchError string             `json:"matchError,omitempty"`
}

type Result struct {
	store.UpsertResult
	Fanout []Fanout `json:"fanout"`
}

// Ingest never fails as a whole: item, matcher and feed failures are reported in the result.
func (s *Service) Ingest(ctx context.Context, inputs []article.Input) Result {
	upserted := s.store.Upsert(ctx, inputs)
	result := Result{UpsertResult: upserted, Fanout: []Fanout{}}

	now := globaltime.UTC()
	for _, a := range upserted.Changed {
		if ctx.Err() != nil {
			s.logger.Warn().Err(ctx.Err()).Msg("ingest canceled before fanout finished")
			break
		}
		result.Fanout = append(result.Fanout, s.fanout(ctx, a, now))
	}

	s.logger.Info().
		Int("created", len(upserted.Created)).
		Int("updated", len(upserted.Updated)).
		Int("skipped", len(upserted.Skipped)).
		Int("failures", len(upserted.Failures)).
		Msg("ingest batch finished")
	return result
}

func (s *Service) fanout(ctx context.Context, a article.Article, now time.Time) Fanout {
	out := Fanout{ArticleID: a.ID, Succeeded: []string{}}

	users, err := s.matcher.Match(ctx, a.Entities)
	if err != nil {
		s.logger.Warn().Err(err).Str("article_id", a.ID).Msg("user matching failed")
		out.MatchError = err.Error()
		return out
	}
	out.Matched = len(users)
	if len(users) == 0 || s.feeds == nil {
		return out
	}

	// Users sharing a score go out in one push.
	var order []float64
	byScore := make(map[float64][]string)
	for _, userID := range users {
		score := ranking.Score(a, userID, now)
		if _, seen := byScore[score]; !seen {
			order = append(order, score)
		}
		byScore[score] = append(byScore[score], userID)
	}

	for _, score := range order {
		pushed := s.feeds.Push(ctx, a.ID, byScore[score], score)
		out.Succeeded = append(out.Succeeded, pushed.Succeeded...)
		out.Failed = append(out.Failed, pushed.Failed...)
	}
	return out
}
