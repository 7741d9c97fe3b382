// Package store implements the article store: fingerprint-keyed upsert and the read paths,
// over a pluggable document backend.
package store

import (
	"context"
	"errors"
	"time"

	"horse.fit/feedcore/internal/article"
)

var (
	// ErrNotFound is returned by a Backend when no record matches.
	ErrNotFound = errors.New("article not found")
	// ErrDuplicate is returned by Backend.Insert when the unique fingerprint index rejects
	// the write.
	ErrDuplicate = errors.New("duplicate article fingerprint")
	// ErrWriteConflict is reported for an item whose insert kept losing the fingerprint race.
	ErrWriteConflict = errors.New("article write conflict")
	// ErrReadFailed wraps any backend failure on a read path.
	ErrReadFailed = errors.New("article read failed")
)

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

// RecentQuery filters FindRecent. Zero values mean "no filter".
type RecentQuery struct {
	Limit  int
	Before *time.Time
	Source string
}

// Backend is the storage primitive set the Store composes into the public operations.
// Implementations must enforce fingerprint uniqueness in the storage layer itself.
type Backend interface {
	// Name identifies the backend in logs and status output.
	Name() string

	// NormalizeID returns the canonical spelling of id, the form FetchByIDs results carry,
	// and false when id is not a record identifier for this backend.
	NormalizeID(id string) (string, bool)

	FindByFingerprint(ctx context.Context, fingerprint string) (article.Article, error)
	// Insert stores a new record and returns its ID, or ErrDuplicate on a fingerprint clash.
	Insert(ctx context.Context, a article.Article) (string, error)
	// Replace overwrites every field of record id except CreatedAt.
	Replace(ctx context.Context, id string, a article.Article) error

	FetchByIDs(ctx context.Context, ids []string) ([]article.Article, error)
	FindRecent(ctx context.Context, q RecentQuery) ([]article.Article, error)
	// FindSince returns articles published within the window, measured on the backend's clock.
	FindSince(ctx context.Context, window time.Duration) ([]article.Article, error)

	// EnsureIndexes provisions the unique and sort indexes. It must be idempotent.
	EnsureIndexes(ctx context.Context) error
	// Status reports server details for connection checks.
	Status(ctx context.Context) (map[string]any, error)
}
