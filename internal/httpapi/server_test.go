package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horse.fit/feedcore/internal/article"
	"horse.fit/feedcore/internal/conn"
	"horse.fit/feedcore/internal/feed"
	"horse.fit/feedcore/internal/globaltime"
	"horse.fit/feedcore/internal/matcher"
	"horse.fit/feedcore/internal/pipeline"
	"horse.fit/feedcore/internal/store"
	"horse.fit/feedcore/internal/store/memstore"
)

var now = time.Date(2026, 2, 13, 16, 0, 0, 0, time.UTC)

type testEnv struct {
	server *Server
	store  *store.Store
	redis  *miniredis.Miniredis
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	globaltime.SetMockTime(now)
	t.Cleanup(globaltime.ResetTime)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := store.New(memstore.New(), zerolog.Nop())
	writer := feed.NewWriter(func(context.Context) (redis.Cmdable, error) { return rdb, nil }, "feed:", zerolog.Nop())
	m := matcher.NewStatic(map[string][]string{"alice": {"AAPL"}, "bob": {"TSLA"}})
	svc := pipeline.New(st, m, writer, zerolog.Nop())

	server := NewServer(st, svc, writer, zerolog.Nop(), Options{PublicURL: "https://feeds.example.com/"})
	return testEnv{server: server, store: st, redis: mr}
}

type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (env testEnv) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	var out response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

const applePayload = `[
	{"url":"https://finance.example.com/apple?utm_source=rss","title":"Apple record","summary":"Apple shares rose.","source":"Yahoo Finance","publishedAt":"2026-02-13T15:59:50Z","entities":{"tickers":["AAPL"]},"quality":{"llmScore":8}},
	{"url":"https://finance.example.com/tesla","title":"Tesla deliveries","summary":"Tesla numbers.","source":"Reuters","publishedAt":"2026-02-13T15:00:00Z","entities":{"tickers":["TSLA"]},"quality":{"llmScore":4}}
]`

type ingestData struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`
	Skipped []string `json:"skipped"`
	Fanout  []struct {
		ArticleID string   `json:"articleId"`
		Succeeded []string `json:"succeeded"`
	} `json:"fanout"`
}

func TestIngestThenReadFeed(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/v1/articles", applePayload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "success", body.Status)

	var ingested ingestData
	require.NoError(t, json.Unmarshal(body.Data, &ingested))
	require.Len(t, ingested.Created, 2)
	require.Len(t, ingested.Fanout, 2)
	assert.Equal(t, []string{"alice"}, ingested.Fanout[0].Succeeded)

	rec, body = env.do(t, http.MethodGet, "/api/v1/feeds/alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var feedData struct {
		Items []struct {
			Score   float64         `json:"score"`
			Article article.Article `json:"article"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &feedData))
	require.Len(t, feedData.Items, 1)
	assert.Equal(t, "Apple record", feedData.Items[0].Article.Title)
	assert.InDelta(t, 0.8, feedData.Items[0].Score, 1e-9)

	rec, body = env.do(t, http.MethodPost, "/api/v1/articles", applePayload)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(body.Data, &ingested))
	assert.Empty(t, ingested.Created)
	assert.Len(t, ingested.Skipped, 2)
}

func TestIngestRejectsInvalidPayload(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/v1/articles", `{"url":"https://ex.com/a","title":"A"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "fail", body.Status)
	assert.Contains(t, string(body.Data), "validation_errors")
}

func seed(t *testing.T, env testEnv) []string {
	t.Helper()
	res := env.store.Upsert(context.Background(), []article.Input{
		{URL: "https://ex.com/1", Title: "one", Source: "Reuters", PublishedAt: now.Add(-3 * time.Hour)},
		{URL: "https://ex.com/2", Title: "two", Source: "Bloomberg", PublishedAt: now.Add(-2 * time.Hour)},
		{URL: "https://ex.com/3", Title: "three", Source: "Reuters", PublishedAt: now.Add(-30 * time.Minute)},
	})
	require.Len(t, res.Created, 3)
	return res.Created
}

type listData struct {
	Items []article.Article `json:"items"`
}

func titles(t *testing.T, raw json.RawMessage) []string {
	t.Helper()
	var data listData
	require.NoError(t, json.Unmarshal(raw, &data))
	out := make([]string, 0, len(data.Items))
	for _, a := range data.Items {
		out = append(out, a.Title)
	}
	return out
}

func TestRecentArticles(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env)

	_, body := env.do(t, http.MethodGet, "/api/v1/articles/recent?limit=2", "")
	assert.Equal(t, []string{"three", "two"}, titles(t, body.Data))

	_, body = env.do(t, http.MethodGet, "/api/v1/articles/recent?source=Reuters", "")
	assert.Equal(t, []string{"three", "one"}, titles(t, body.Data))

	_, body = env.do(t, http.MethodGet, "/api/v1/articles/recent?before=2026-02-13T14:00:00Z", "")
	assert.Equal(t, []string{"one"}, titles(t, body.Data))

	rec, _ := env.do(t, http.MethodGet, "/api/v1/articles/recent?limit=501", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArticlesSince(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env)

	_, body := env.do(t, http.MethodGet, "/api/v1/articles/since?hours=1", "")
	assert.Equal(t, []string{"three"}, titles(t, body.Data))

	rec, _ := env.do(t, http.MethodGet, "/api/v1/articles/since?hours=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArticlesByID(t *testing.T) {
	env := newTestEnv(t)
	ids := seed(t, env)

	_, body := env.do(t, http.MethodGet, "/api/v1/articles?ids="+ids[2]+",bogus,"+ids[0], "")
	assert.Equal(t, []string{"three", "one"}, titles(t, body.Data))

	rec, _ := env.do(t, http.MethodGet, "/api/v1/articles", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLookupByURL(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env)

	rec, body := env.do(t, http.MethodGet, "/api/v1/articles/lookup?url=https://ex.com/2%3Futm_source%3Dx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var found article.Article
	require.NoError(t, json.Unmarshal(body.Data, &found))
	assert.Equal(t, "two", found.Title)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/articles/lookup?url=https://ex.com/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/articles/lookup?url=not-a-url", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedAtom(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/articles", applePayload)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/feeds/alice/atom", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/atom+xml")
	assert.Contains(t, rec.Body.String(), "<title>Apple record</title>")
	assert.Contains(t, rec.Body.String(), "https://feeds.example.com/api/v1/feeds/alice/atom")
	assert.NotContains(t, rec.Body.String(), "Tesla deliveries")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body.Status)

	env.redis.Close()
	rec, body = env.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "fail", body.Status)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "fail", body.Status)
}

func TestStoreErrorDistinguishesUnavailable(t *testing.T) {
	e := echo.New()
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: find recent articles: timeout", store.ErrReadFailed), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: redis: refused", conn.ErrConnectionFailure), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		require.NoError(t, storeError(c, tc.err, "Failed"))
		assert.Equal(t, tc.code, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"error"`)
	}
}
