// Package pgstore keeps articles in a PostgreSQL table through GORM, with the entity and
// quality documents in jsonb columns.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"horse.fit/feedcore/internal/article"
	"horse.fit/feedcore/internal/db"
	"horse.fit/feedcore/internal/store"
)

type PoolFunc func(ctx context.Context) (*db.Pool, error)

type articleRow struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	URL         string         `gorm:"not null"`
	URLHash     string         `gorm:"column:url_hash;size:64;not null;uniqueIndex:urlHash_unique"`
	Title       string         `gorm:"not null;default:''"`
	Summary     string         `gorm:"not null;default:''"`
	Source      string         `gorm:"not null;default:''"`
	Image       *string        `gorm:"column:image"`
	PublishedAt time.Time      `gorm:"column:published_at;type:timestamptz;not null"`
	Entities    datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"`
	Quality     datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt   time.Time      `gorm:"column:created_at;type:timestamptz;not null;autoCreateTime:false"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;type:timestamptz;not null;autoUpdateTime:false"`
}

func (articleRow) TableName() string { return "articles" }

var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS "publishedAt_source" ON articles (published_at DESC, source ASC)`,
	`CREATE INDEX IF NOT EXISTS "publishedAt_desc" ON articles (published_at DESC)`,
}

type Backend struct {
	pool PoolFunc
}

var _ store.Backend = (*Backend)(nil)

func New(pool PoolFunc) *Backend {
	return &Backend{pool: pool}
}

func (b *Backend) Name() string { return "postgres" }

// NormalizeID accepts any spelling uuid.Parse does and returns the lowercase hyphenated form.
func (b *Backend) NormalizeID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

func (b *Backend) session(ctx context.Context) (*gorm.DB, error) {
	pool, err := b.pool(ctx)
	if err != nil {
		return nil, err
	}
	return pool.GORM().WithContext(ctx), nil
}

func (b *Backend) FindByFingerprint(ctx context.Context, fingerprint string) (article.Article, error) {
	gdb, err := b.session(ctx)
	if err != nil {
		return article.Article{}, err
	}

	var row articleRow
	err = gdb.Where("url_hash = ?", fingerprint).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return article.Article{}, store.ErrNotFound
	}
	if err != nil {
		return article.Article{}, fmt.Errorf("find url_hash %s: %w", fingerprint, err)
	}
	return fromRow(row)
}

func (b *Backend) Insert(ctx context.Context, a article.Article) (string, error) {
	gdb, err := b.session(ctx)
	if err != nil {
		return "", err
	}

	row, err := toRow(a)
	if err != nil {
		return "", err
	}
	row.ID = uuid.NewString()

	if err := gdb.Create(&row).Error; err != nil {
		if db.IsDuplicate(err) {
			return "", store.ErrDuplicate
		}
		return "", fmt.Errorf("insert article: %w", err)
	}
	return row.ID, nil
}

func (b *Backend) Replace(ctx context.Context, id string, a article.Article) error {
	gdb, err := b.session(ctx)
	if err != nil {
		return err
	}

	row, err := toRow(a)
	if err != nil {
		return err
	}

	res := gdb.Model(&articleRow{}).Where("id = ?", id).Updates(map[string]any{
		"url":          row.URL,
		"url_hash":     row.URLHash,
		"title":        row.Title,
		"summary":      row.Summary,
		"source":       row.Source,
		"image":        row.Image,
		"published_at": row.PublishedAt,
		"entities":     row.Entities,
		"quality":      row.Quality,
		"updated_at":   row.UpdatedAt,
	})
	if res.Error != nil {
		if db.IsDuplicate(res.Error) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("replace article: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (b *Backend) FetchByIDs(ctx context.Context, ids []string) ([]article.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return b.find(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("id IN ?", ids)
	})
}

func (b *Backend) FindRecent(ctx context.Context, q store.RecentQuery) ([]article.Article, error) {
	return b.find(ctx, func(tx *gorm.DB) *gorm.DB {
		if q.Source != "" {
			tx = tx.Where("source = ?", q.Source)
		}
		if q.Before != nil {
			tx = tx.Where("published_at < ?", q.Before.UTC())
		}
		if q.Limit > 0 {
			tx = tx.Limit(q.Limit)
		}
		return tx
	})
}

// FindSince evaluates the cutoff with the database clock.
func (b *Backend) FindSince(ctx context.Context, window time.Duration) ([]article.Article, error) {
	return b.find(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("published_at >= now() - make_interval(secs => ?)", window.Seconds())
	})
}

func (b *Backend) find(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]article.Article, error) {
	gdb, err := b.session(ctx)
	if err != nil {
		return nil, err
	}

	var rows []articleRow
	if err := gdb.Scopes(scope).Order("published_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find articles: %w", err)
	}

	out := make([]article.Article, 0, len(rows))
	for _, row := range rows {
		a, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// EnsureIndexes creates the table with its unique fingerprint index, then the sort indexes.
func (b *Backend) EnsureIndexes(ctx context.Context) error {
	gdb, err := b.session(ctx)
	if err != nil {
		return err
	}

	if err := gdb.AutoMigrate(&articleRow{}); err != nil {
		return fmt.Errorf("migrate articles table: %w", err)
	}
	for _, stmt := range indexStatements {
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func (b *Backend) Status(ctx context.Context) (map[string]any, error) {
	pool, err := b.pool(ctx)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	var version, database string
	if err := pool.QueryRow(ctx, `SELECT version(), current_database()`).Scan(&version, &database); err != nil {
		return nil, fmt.Errorf("query server version: %w", err)
	}
	return map[string]any{
		"database": database,
		"version":  version,
		"table":    articleRow{}.TableName(),
	}, nil
}

func toRow(a article.Article) (articleRow, error) {
	entities, err := json.Marshal(a.Entities)
	if err != nil {
		return articleRow{}, fmt.Errorf("encode entities: %w", err)
	}
	quality, err := json.Marshal(a.Quality)
	if err != nil {
		return articleRow{}, fmt.Errorf("encode quality: %w", err)
	}

	return articleRow{
		ID:          a.ID,
		URL:         a.URL,
		URLHash:     a.Fingerprint,
		Title:       a.Title,
		Summary:     a.Summary,
		Source:      a.Source,
		Image:       a.Image,
		PublishedAt: a.PublishedAt.UTC(),
		Entities:    datatypes.JSON(entities),
		Quality:     datatypes.JSON(quality),
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   a.UpdatedAt.UTC(),
	}, nil
}

func fromRow(row articleRow) (article.Article, error) {
	a := article.Article{
		ID:          row.ID,
		URL:         row.URL,
		Fingerprint: row.URLHash,
		Title:       row.Title,
		Summary:     row.Summary,
		Source:      row.Source,
		Image:       row.Image,
		PublishedAt: row.PublishedAt,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if len(row.Entities) > 0 {
		if err := json.Unmarshal(row.Entities, &a.Entities); err != nil {
			return article.Article{}, fmt.Errorf("decode entities of %s: %w", row.ID, err)
		}
	}
	if len(row.Quality) > 0 {
		if err := json.Unmarshal(row.Quality, &a.Quality); err != nil {
			return article.Article{}, fmt.Errorf("decode quality of %s: %w", row.ID, err)
		}
	}
	a.Normalize()
	return a, nil
}
