// Package matcher decides which users should receive an article in their feed.
package matcher

import (
	"context"
	"slices"
	"strings"

	"horse.fit/feedcore/internal/article"
)

// Matcher returns the IDs of users interested in an article with the given entities.
// No match is an empty slice and a nil error.
type Matcher interface {
	Match(ctx context.Context, entities article.Entities) ([]string, error)
}

// None matches nobody.
type None struct{}

func (None) Match(context.Context, article.Entities) ([]string, error) {
	return []string{}, nil
}

// Static matches against watchlists held in memory, keyed by user ID.
type Static struct {
	watchlists map[string][]string
}

func NewStatic(watchlists map[string][]string) *Static {
	normalized := make(map[string][]string, len(watchlists))
	for userID, tickers := range watchlists {
		normalized[userID] = normalizeTickers(tickers)
	}
	return &Static{watchlists: normalized}
}

func (s *Static) Match(_ context.Context, entities article.Entities) ([]string, error) {
	tickers := normalizeTickers(entities.Tickers)
	users := []string{}
	if len(tickers) == 0 {
		return users, nil
	}

	for userID, watched := range s.watchlists {
		if slices.ContainsFunc(watched, func(t string) bool { return slices.Contains(tickers, t) }) {
			users = append(users, userID)
		}
	}
	slices.Sort(users)
	return users, nil
}

// normalizeTickers upper-cases, trims and dedups ticker symbols.
func normalizeTickers(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
