package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/feedcore/internal/article"
	"horse.fit/feedcore/internal/globaltime"
	"horse.fit/feedcore/internal/urlnorm"
)

// UnknownFingerprint stands in for items whose URL could not be fingerprinted.
const UnknownFingerprint = "unknown"

// insertAttempts bounds how often one item retries after losing the fingerprint race.
const insertAttempts = 2

// OptionalIndex provisions an index whose failure must not block startup.
type OptionalIndex struct {
	Name   string
	Ensure func(ctx context.Context) error
}

type Option func(*Store)

// WithOptionalIndex registers an index that InitIndexes creates best-effort.
func WithOptionalIndex(idx OptionalIndex) Option {
	return func(s *Store) {
		s.optional = append(s.optional, idx)
	}
}

type Store struct {
	backend  Backend
	logger   zerolog.Logger
	optional []OptionalIndex
}

func New(backend Backend, logger zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  logger.With().Str("backend", backend.Name()).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend exposes the underlying backend, mostly for status output.
func (s *Store) Backend() Backend {
	return s.backend
}

// ItemFailure records why one upsert item ended up skipped.
type ItemFailure struct {
	Index       int    `json:"index"`
	URL         string `json:"url"`
	Fingerprint string `json:"urlHash"`
	Err         error  `json:"-"`
	Message     string `json:"error"`
}

// UpsertResult classifies every input item into exactly one of Created, Updated or Skipped.
type UpsertResult struct {
	Created  []string      `json:"created"`
	Updated  []string      `json:"updated"`
	Skipped  []string      `json:"skipped"`
	Failures []ItemFailure `json:"failures,omitempty"`

	// Changed holds the records written by this call, created and updated alike.
	Changed []article.Article `json:"-"`
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
	outcomeSkipped
)

// Upsert writes each input keyed by its recomputed fingerprint. A failing item is logged,
// reported in Failures and classified as skipped; it never aborts the batch.
func (s *Store) Upsert(ctx context.Context, inputs []article.Input) UpsertResult {
	result := UpsertResult{
		Created: []string{},
		Updated: []string{},
		Skipped: []string{},
	}

	for i, in := range inputs {
		doc, err := in.Build()
		if err != nil {
			s.logger.Error().Err(err).Int("index", i).Str("url", in.URL).Msg("rejected article input")
			result.Skipped = append(result.Skipped, UnknownFingerprint)
			result.Failures = append(result.Failures, newItemFailure(i, in.URL, UnknownFingerprint, err))
			continue
		}

		written, kind, err := s.upsertOne(ctx, doc)
		if err != nil {
			s.logger.Error().Err(err).Str("url_hash", doc.Fingerprint).Str("title", doc.Title).Msg("upsert article failed")
			result.Skipped = append(result.Skipped, doc.Fingerprint)
			result.Failures = append(result.Failures, newItemFailure(i, doc.URL, doc.Fingerprint, err))
			continue
		}

		switch kind {
		case outcomeCreated:
			s.logger.Info().Str("article_id", written.ID).Str("url_hash", written.Fingerprint).Str("title", written.Title).Msg("created article")
			result.Created = append(result.Created, written.ID)
			result.Changed = append(result.Changed, written)
		case outcomeUpdated:
			s.logger.Info().Str("article_id", written.ID).Str("url_hash", written.Fingerprint).Str("title", written.Title).Msg("updated article")
			result.Updated = append(result.Updated, written.ID)
			result.Changed = append(result.Changed, written)
		default:
			s.logger.Debug().Str("url_hash", doc.Fingerprint).Str("title", doc.Title).Msg("skipped article (no changes)")
			result.Skipped = append(result.Skipped, doc.Fingerprint)
		}
	}

	return result
}

func (s *Store) upsertOne(ctx context.Context, doc article.Article) (article.Article, outcome, error) {
	for attempt := 0; attempt < insertAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return article.Article{}, outcomeSkipped, err
		}

		existing, err := s.backend.FindByFingerprint(ctx, doc.Fingerprint)
		switch {
		case err == nil:
			return s.updateIfChanged(ctx, existing, doc)
		case !errors.Is(err, ErrNotFound):
			return article.Article{}, outcomeSkipped, fmt.Errorf("find by fingerprint: %w", err)
		}

		now := globaltime.StoreUTC()
		fresh := doc
		fresh.CreatedAt = now
		fresh.UpdatedAt = now

		id, err := s.backend.Insert(ctx, fresh)
		if err == nil {
			fresh.ID = id
			return fresh, outcomeCreated, nil
		}
		if !errors.Is(err, ErrDuplicate) {
			return article.Article{}, outcomeSkipped, fmt.Errorf("insert article: %w", err)
		}
		// Another writer created the fingerprint between our lookup and insert.
		// The unique index decided; re-read and fall into the update-or-skip path.
		s.logger.Warn().Str("url_hash", doc.Fingerprint).Int("attempt", attempt+1).Msg("lost insert race on fingerprint")
	}
	return article.Article{}, outcomeSkipped, ErrWriteConflict
}

func (s *Store) updateIfChanged(ctx context.Context, existing, doc article.Article) (article.Article, outcome, error) {
	if article.SameContent(existing, doc) {
		return existing, outcomeSkipped, nil
	}

	replacement := doc
	replacement.ID = existing.ID
	replacement.CreatedAt = existing.CreatedAt
	replacement.UpdatedAt = globaltime.StoreUTC()
	if !replacement.UpdatedAt.After(existing.UpdatedAt) {
		replacement.UpdatedAt = existing.UpdatedAt.Add(time.Millisecond)
	}

	if err := s.backend.Replace(ctx, existing.ID, replacement); err != nil {
		return article.Article{}, outcomeSkipped, fmt.Errorf("replace article %s: %w", existing.ID, err)
	}
	return replacement, outcomeUpdated, nil
}

func newItemFailure(index int, url, fingerprint string, err error) ItemFailure {
	return ItemFailure{
		Index:       index,
		URL:         url,
		Fingerprint: fingerprint,
		Err:         err,
		Message:     err.Error(),
	}
}

// FetchByIDs returns the articles with the given IDs in request order. IDs are matched in
// their canonical spelling, malformed IDs are dropped silently and duplicates collapse.
func (s *Store) FetchByIDs(ctx context.Context, ids []string) ([]article.Article, error) {
	valid := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		id, ok := s.backend.NormalizeID(raw)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		valid = append(valid, id)
	}
	if len(valid) == 0 {
		return []article.Article{}, nil
	}

	found, err := s.backend.FetchByIDs(ctx, valid)
	if err != nil {
		return s.readFailed(err, "fetch articles by ids")
	}

	byID := make(map[string]article.Article, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	ordered := make([]article.Article, 0, len(found))
	for _, id := range valid {
		if a, ok := byID[id]; ok {
			ordered = append(ordered, a)
		}
	}
	return ordered, nil
}

// FindRecent returns the newest articles first, at most q.Limit of them. A limit of zero
// or less means DefaultRecentLimit, anything above MaxRecentLimit is clamped to it.
func (s *Store) FindRecent(ctx context.Context, q RecentQuery) ([]article.Article, error) {
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultRecentLimit
	case q.Limit > MaxRecentLimit:
		q.Limit = MaxRecentLimit
	}
	if q.Before != nil {
		before := q.Before.UTC()
		q.Before = &before
	}

	found, err := s.backend.FindRecent(ctx, q)
	if err != nil {
		return s.readFailed(err, "find recent articles")
	}
	return nonNil(found), nil
}

// maxWindowHours is the largest window expressible as a time.Duration. Wider windows
// have no lower bound.
const maxWindowHours = math.MaxInt64 / int64(time.Hour)

// FindSince returns every article published in the last hours, newest first.
// The cutoff is computed by the backend at query time.
func (s *Store) FindSince(ctx context.Context, hours int) ([]article.Article, error) {
	if hours < 0 {
		return []article.Article{}, fmt.Errorf("hours must be >= 0, got %d", hours)
	}

	window := time.Duration(math.MaxInt64)
	if int64(hours) <= maxWindowHours {
		window = time.Duration(hours) * time.Hour
	}

	found, err := s.backend.FindSince(ctx, window)
	if err != nil {
		return s.readFailed(err, "find articles since")
	}
	return nonNil(found), nil
}

// FindByURL looks an article up by the fingerprint of url. A missing article is (nil, nil).
func (s *Store) FindByURL(ctx context.Context, url string) (*article.Article, error) {
	fingerprint, err := urlnorm.Fingerprint(url)
	if err != nil {
		return nil, err
	}

	found, err := s.backend.FindByFingerprint(ctx, fingerprint)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("url_hash", fingerprint).Msg("find article by url failed")
		return nil, fmt.Errorf("%w: find by url: %v", ErrReadFailed, err)
	}
	return &found, nil
}

func (s *Store) readFailed(err error, op string) ([]article.Article, error) {
	s.logger.Error().Err(err).Msg(op + " failed")
	return []article.Article{}, fmt.Errorf("%w: %s: %v", ErrReadFailed, op, err)
}

func nonNil(articles []article.Article) []article.Article {
	if articles == nil {
		return []article.Article{}
	}
	return articles
}
