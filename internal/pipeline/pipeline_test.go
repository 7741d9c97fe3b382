package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horse.fit/feedcore/internal/article"
	"horse.fit/feedcore/internal/feed"
	"horse.fit/feedcore/internal/globaltime"
	"horse.fit/feedcore/internal/matcher"
	"horse.fit/feedcore/internal/store"
	"horse.fit/feedcore/internal/store/memstore"
)

var now = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

type harness struct {
	svc   *Service
	redis *miniredis.Miniredis
}

func newHarness(t *testing.T, m matcher.Matcher) harness {
	t.Helper()
	globaltime.SetMockTime(now)
	t.Cleanup(globaltime.ResetTime)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	writer := feed.NewWriter(func(context.Context) (redis.Cmdable, error) { return rdb, nil }, "feed:", zerolog.Nop())
	st := store.New(memstore.New(), zerolog.Nop())
	return harness{svc: New(st, m, writer, zerolog.Nop()), redis: mr}
}

func tickerArticle(url string, quality float64, tickers ...string) article.Input {
	return article.Input{
		URL:         url,
		Title:       "Markets",
		Source:      "Reuters",
		PublishedAt: now.Add(-10 * time.Second),
		Entities:    article.Entities{Tickers: tickers},
		Quality:     article.Quality{Score: quality},
	}
}

func TestIngestFansOutToMatchedUsers(t *testing.T) {
	h := newHarness(t, matcher.NewStatic(map[string][]string{
		"alice": {"AAPL"},
		"bob":   {"TSLA"},
	}))

	res := h.svc.Ingest(context.Background(), []article.Input{
		tickerArticle("https://example.com/apple", 8, "AAPL"),
	})
	require.Len(t, res.Created, 1)
	require.Len(t, res.Fanout, 1)
	assert.Equal(t, 1, res.Fanout[0].Matched)
	assert.Equal(t, []string{"alice"}, res.Fanout[0].Succeeded)

	score, err := h.redis.ZScore("feed:alice", res.Created[0])
	require.NoError(t, err)
	assert.InDelta(t, 0.8, score, 1e-9)
	assert.False(t, h.redis.Exists("feed:bob"))
}

func TestIngestSkipsFanoutForUnchangedArticles(t *testing.T) {
	h := newHarness(t, matcher.NewStatic(map[string][]string{"alice": {"AAPL"}}))
	batch := []article.Input{tickerArticle("https://example.com/apple", 8, "AAPL")}

	h.svc.Ingest(context.Background(), batch)
	again := h.svc.Ingest(context.Background(), batch)

	assert.Len(t, again.Skipped, 1)
	assert.Empty(t, again.Fanout)
}

func TestIngestRepushesUpdatedArticle(t *testing.T) {
	h := newHarness(t, matcher.NewStatic(map[string][]string{"alice": {"AAPL"}}))
	ctx := context.Background()

	first := h.svc.Ingest(ctx, []article.Input{tickerArticle("https://example.com/apple", 2, "AAPL")})
	second := h.svc.Ingest(ctx, []article.Input{tickerArticle("https://example.com/apple?utm_campaign=x", 6, "AAPL")})
	require.Equal(t, first.Created, second.Updated)

	members, err := h.redis.ZMembers("feed:alice")
	require.NoError(t, err)
	assert.Len(t, members, 1)
	score, _ := h.redis.ZScore("feed:alice", first.Created[0])
	assert.InDelta(t, 0.6, score, 1e-9)
}

type failingMatcher struct{}

func (failingMatcher) Match(context.Context, article.Entities) ([]string, error) {
	return nil, errors.New("users collection unavailable")
}

func TestIngestToleratesMatcherErrors(t *testing.T) {
	h := newHarness(t, failingMatcher{})

	res := h.svc.Ingest(context.Background(), []article.Input{
		tickerArticle("https://example.com/a", 5, "AAPL"),
		tickerArticle("https://example.com/b", 5, "MSFT"),
	})
	assert.Len(t, res.Created, 2)
	require.Len(t, res.Fanout, 2)
	assert.Equal(t, "users collection unavailable", res.Fanout[0].MatchError)
	assert.Empty(t, h.redis.Keys())
}

func TestIngestWithDefaultMatcherStoresOnly(t *testing.T) {
	h := newHarness(t, nil)

	res := h.svc.Ingest(context.Background(), []article.Input{
		tickerArticle("https://example.com/a", 5, "AAPL"),
		{URL: "::bad::", PublishedAt: now},
	})
	assert.Len(t, res.Created, 1)
	assert.Equal(t, []string{store.UnknownFingerprint}, res.Skipped)
	require.Len(t, res.Fanout, 1)
	assert.Zero(t, res.Fanout[0].Matched)
	assert.Empty(t, h.redis.Keys())
}
