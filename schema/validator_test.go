package payloadschema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horse.fit/feedcore/internal/urlnorm"
)

func TestValidateArticlePayload_SingleObject(t *testing.T) {
	payload := json.RawMessage(`{
		"url":"https://finance.example.com/news/apple-record-high?utm_source=rss",
		"title":"Apple Stock Hits Record High",
		"summary":"Apple shares reached an all-time high.",
		"source":"Yahoo Finance",
		"publishedAt":"2026-02-13T14:00:00Z",
		"entities":{"tickers":["AAPL"],"keywords":["iPhone","record"]},
		"quality":{"llmScore":7.8,"reason":"Strong relevance"}
	}`)

	inputs, err := ValidateArticlePayload(payload)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, 7.8, inputs[0].Quality.Score)
	assert.Equal(t, []string{"AAPL"}, inputs[0].Entities.Tickers)
}

func TestValidateArticlePayload_Array(t *testing.T) {
	payload := json.RawMessage(`[
		{"url":"https://reuters.example.com/tesla","title":"Tesla Q4","summary":"s","source":"Reuters","publishedAt":"2026-02-13T14:00:00Z"},
		{"url":"https://bloomberg.example.com/azure","title":"Azure growth","summary":"s","source":"Bloomberg","publishedAt":"2026-02-13T15:00:00+01:00","image":null}
	]`)

	inputs, err := ValidateArticlePayload(payload)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Nil(t, inputs[1].Image, "null image decodes as nil")
}

func TestValidateArticlePayload_MissingPublishedAt(t *testing.T) {
	payload := json.RawMessage(`{"url":"https://ex.com/a","title":"A","summary":"s","source":"Ex"}`)

	_, err := ValidateArticlePayload(payload)
	assert.Error(t, err)
}

func TestValidateArticlePayload_UnknownField(t *testing.T) {
	payload := json.RawMessage(`{"url":"https://ex.com/a","title":"A","summary":"s","source":"Ex","publishedAt":"2026-02-13T14:00:00Z","body":"x"}`)

	_, err := ValidateArticlePayload(payload)
	assert.Error(t, err)
}

func TestValidateArticlePayload_RelativeURL(t *testing.T) {
	payload := json.RawMessage(`{"url":"/a/relative/path","title":"A","summary":"s","source":"Ex","publishedAt":"2026-02-13T14:00:00Z"}`)

	_, err := ValidateArticlePayload(payload)
	assert.Error(t, err)
}

func TestValidateArticlePayload_WhitespaceSource(t *testing.T) {
	payload := json.RawMessage(`{"url":"https://ex.com/a","title":"A","summary":"s","source":"   ","publishedAt":"2026-02-13T14:00:00Z"}`)

	_, err := ValidateArticlePayload(payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source must not be empty")
}

func TestValidateArticlePayload_TrailingContent(t *testing.T) {
	payload := json.RawMessage(`{"url":"https://ex.com/a","title":"A","summary":"s","source":"Ex","publishedAt":"2026-02-13T14:00:00Z"} {}`)

	_, err := ValidateArticlePayload(payload)
	assert.Error(t, err)
}

func TestValidateArticlePayload_SemanticURLCheck(t *testing.T) {
	// "mailto:" passes the uri format but has no host to fingerprint.
	payload := json.RawMessage(`{"url":"mailto:desk@example.com","title":"A","summary":"s","source":"Ex","publishedAt":"2026-02-13T14:00:00Z"}`)

	_, err := ValidateArticlePayload(payload)
	assert.ErrorIs(t, err, urlnorm.ErrMalformedURL)
}
