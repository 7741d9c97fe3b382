// Package memstore is an in-process article backend. The fingerprint map plays the role of
// the unique index, so it honors the same insert-conflict contract as the real stores.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"horse.fit/feedcore/internal/article"
	"horse.fit/feedcore/internal/globaltime"
	"horse.fit/feedcore/internal/store"
)

type Backend struct {
	mu            sync.RWMutex
	byID          map[string]article.Article
	byFingerprint map[string]string
}

var _ store.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{
		byID:          make(map[string]article.Article),
		byFingerprint: make(map[string]string),
	}
}

func (b *Backend) Name() string { return "memory" }

// NormalizeID accepts any spelling uuid.Parse does and returns the lowercase hyphenated form.
func (b *Backend) NormalizeID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// Len returns the number of stored articles.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}

func (b *Backend) FindByFingerprint(_ context.Context, fingerprint string) (article.Article, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	id, ok := b.byFingerprint[fingerprint]
	if !ok {
		return article.Article{}, store.ErrNotFound
	}
	return b.byID[id], nil
}

func (b *Backend) Insert(_ context.Context, a article.Article) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.byFingerprint[a.Fingerprint]; exists {
		return "", store.ErrDuplicate
	}
	a.ID = uuid.NewString()
	b.byID[a.ID] = a
	b.byFingerprint[a.Fingerprint] = a.ID
	return a.ID, nil
}

func (b *Backend) Replace(_ context.Context, id string, a article.Article) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, ok := b.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	if owner, taken := b.byFingerprint[a.Fingerprint]; taken && owner != id {
		return store.ErrDuplicate
	}

	a.ID = id
	a.CreatedAt = existing.CreatedAt
	delete(b.byFingerprint, existing.Fingerprint)
	b.byFingerprint[a.Fingerprint] = id
	b.byID[id] = a
	return nil
}

func (b *Backend) FetchByIDs(_ context.Context, ids []string) ([]article.Article, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]article.Article, 0, len(ids))
	for _, id := range ids {
		if a, ok := b.byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (b *Backend) FindRecent(_ context.Context, q store.RecentQuery) ([]article.Article, error) {
	matches := b.filter(func(a article.Article) bool {
		if q.Source != "" && a.Source != q.Source {
			return false
		}
		if q.Before != nil && !a.PublishedAt.Before(*q.Before) {
			return false
		}
		return true
	})
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

// FindSince uses the process clock, which is this backend's own clock.
func (b *Backend) FindSince(_ context.Context, window time.Duration) ([]article.Article, error) {
	cutoff := globaltime.UTC().Add(-window)
	return b.filter(func(a article.Article) bool {
		return !a.PublishedAt.Before(cutoff)
	}), nil
}

func (b *Backend) EnsureIndexes(context.Context) error { return nil }

func (b *Backend) Status(context.Context) (map[string]any, error) {
	return map[string]any{"articles": b.Len()}, nil
}

// filter returns matching articles sorted by publish time, newest first.
func (b *Backend) filter(keep func(article.Article) bool) []article.Article {
	b.mu.RLock()
	out := make([]article.Article, 0, len(b.byID))
	for _, a := range b.byID {
		if keep(a) {
			out = append(out, a)
		}
	}
	b.mu.RUnlock()

	slices.SortFunc(out, func(x, y article.Article) int {
		if c := y.PublishedAt.Compare(x.PublishedAt); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
	return out
}
