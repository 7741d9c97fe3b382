// Package article defines the stored article record and the scraper-facing input shape.
package article

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"horse.fit/feedcore/internal/urlnorm"
)

var ErrInvalidInput = errors.New("invalid article input")

// Article is one ingested news item as persisted by the article store.
// The bson names are a schema contract: indexes are defined over urlHash and publishedAt.
type Article struct {
	ID          string    `json:"id" bson:"-"`
	URL         string    `json:"url" bson:"url"`
	Fingerprint string    `json:"urlHash" bson:"urlHash"`
	Title       string    `json:"title" bson:"title"`
	Summary     string    `json:"summary" bson:"summary"`
	Source      string    `json:"source" bson:"source"`
	Image       *string   `json:"image,omitempty" bson:"image,omitempty"`
	PublishedAt time.Time `json:"publishedAt" bson:"publishedAt"`
	Entities    Entities  `json:"entities" bson:"entities"`
	Quality     Quality   `json:"quality" bson:"quality"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Input is an article as produced by a scraper.
type Input struct {
	URL string `json:"url"`
	// Fingerprint is accepted for compatibility with older producers but never trusted.
	Fingerprint string    `json:"urlHash,omitempty"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Source      string    `json:"source"`
	Image       *string   `json:"image,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	Entities    Entities  `json:"entities"`
	Quality     Quality   `json:"quality"`
}

// Build validates the input and returns a normalized article with a freshly computed
// fingerprint. Timestamps and ID are left for the store to assign.
func (in Input) Build() (Article, error) {
	rawURL := strings.TrimSpace(in.URL)
	fingerprint, err := urlnorm.Fingerprint(rawURL)
	if err != nil {
		return Article{}, err
	}
	if in.PublishedAt.IsZero() {
		return Article{}, fmt.Errorf("%w: publishedAt is required", ErrInvalidInput)
	}

	a := Article{
		URL:         rawURL,
		Fingerprint: fingerprint,
		Title:       in.Title,
		Summary:     in.Summary,
		Source:      in.Source,
		Image:       normalizeImage(in.Image),
		PublishedAt: in.PublishedAt,
		Entities:    in.Entities.clone(),
		Quality:     in.Quality.clone(),
	}
	a.Normalize()
	return a, nil
}

// Normalize brings an article into the form the stores persist: UTC timestamps at
// millisecond precision and empty collections represented as nil.
func (a *Article) Normalize() {
	a.PublishedAt = toStoreTime(a.PublishedAt)
	a.CreatedAt = toStoreTime(a.CreatedAt)
	a.UpdatedAt = toStoreTime(a.UpdatedAt)
	a.Image = normalizeImage(a.Image)
	a.Entities.normalize()
	a.Quality.normalize()
}

func toStoreTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Millisecond)
}

func normalizeImage(image *string) *string {
	if image == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*image)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
