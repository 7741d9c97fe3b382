package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)

	t.Setenv("FEEDCORE_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("ARTICLE_BACKEND", "memory")
	t.Setenv("MATCHER", "none")
	t.Setenv("REDIS_URL", "redis://"+mr.Addr()+"/0")
	t.Setenv("FEED_KEY_PREFIX", "feed:")
	return mr
}

func TestRunUsage(t *testing.T) {
	assert.Equal(t, 2, Run(nil), "no command")
	assert.Equal(t, 2, Run([]string{"bogus"}), "unknown command")
	assert.Equal(t, 0, Run([]string{"help"}))
}

func TestIngestCommand(t *testing.T) {
	setupEnv(t)
	payload := filepath.Join(t.TempDir(), "articles.json")
	body := `[{"url":"https://ex.com/a?utm_source=x","title":"A","summary":"s","source":"Reuters","publishedAt":"2026-02-13T14:00:00Z","entities":{"tickers":["AAPL"]},"quality":{"llmScore":5}}]`
	require.NoError(t, os.WriteFile(payload, []byte(body), 0o600))

	assert.Equal(t, 0, Run([]string{"ingest", "--payload-file", payload}))
}

func TestIngestCommandRejectsInvalidPayload(t *testing.T) {
	setupEnv(t)

	assert.Equal(t, 2, Run([]string{"ingest", "--payload", `{"url":"https://ex.com/a"}`}))
	assert.Equal(t, 2, Run([]string{"ingest"}), "empty payload")
}

func TestHealthAndIndexCommands(t *testing.T) {
	mr := setupEnv(t)

	require.Equal(t, 0, Run([]string{"init-indexes"}))
	require.Equal(t, 0, Run([]string{"health"}))

	mr.Close()
	assert.Equal(t, 1, Run([]string{"health", "--timeout", "2s"}), "redis down")
}

func TestFeedCommand(t *testing.T) {
	mr := setupEnv(t)
	_, err := mr.ZAdd("feed:alice", 2.5, "a1")
	require.NoError(t, err)

	assert.Equal(t, 0, Run([]string{"feed", "--user", "alice", "--limit", "5"}))
	assert.Equal(t, 2, Run([]string{"feed"}), "missing --user")
}

func TestWatchRequiresWatchlistMatcher(t *testing.T) {
	setupEnv(t)

	assert.Equal(t, 2, Run([]string{"watch", "--user", "alice", "--tickers", "AAPL"}))
}

func TestInvalidConfigFails(t *testing.T) {
	setupEnv(t)
	t.Setenv("ARTICLE_BACKEND", "cassandra")

	assert.Equal(t, 1, Run([]string{"health"}))
}
