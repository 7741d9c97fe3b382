// Package ranking scores an article for a user's feed.
package ranking

import (
	"time"

	"horse.fit/feedcore/internal/article"
)

// Score is quality divided by age in seconds, with age floored at one second so fresh and
// undated articles score their full quality. userID is reserved for per-user weighting.
func Score(a article.Article, userID string, now time.Time) float64 {
	age := 1.0
	if !a.PublishedAt.IsZero() {
		age = max(1, now.Sub(a.PublishedAt).Seconds())
	}
	return a.Quality.Score / age
}
