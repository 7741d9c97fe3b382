// Package mongostore keeps articles in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"horse.fit/feedcore/internal/article"
	"horse.fit/feedcore/internal/store"
)

const (
	IndexURLHashUnique     = "urlHash_unique"
	IndexPublishedAtSource = "publishedAt_source"
	IndexPublishedAtDesc   = "publishedAt_desc"
)

// ClientFunc hands out the shared client; it is called on every operation so the
// connection can be opened lazily.
type ClientFunc func(ctx context.Context) (*mongo.Client, error)

type articleDoc struct {
	ObjectID        primitive.ObjectID `bson:"_id,omitempty"`
	article.Article `bson:",inline"`
}

type Backend struct {
	client     ClientFunc
	database   string
	collection string
}

var _ store.Backend = (*Backend)(nil)

func New(client ClientFunc, database, collection string) *Backend {
	return &Backend{client: client, database: database, collection: collection}
}

func (b *Backend) Name() string { return "mongodb" }

func (b *Backend) NormalizeID(id string) (string, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return "", false
	}
	return oid.Hex(), true
}

func (b *Backend) coll(ctx context.Context) (*mongo.Collection, error) {
	client, err := b.client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(b.database).Collection(b.collection), nil
}

func (b *Backend) FindByFingerprint(ctx context.Context, fingerprint string) (article.Article, error) {
	coll, err := b.coll(ctx)
	if err != nil {
		return article.Article{}, err
	}

	var doc articleDoc
	err = coll.FindOne(ctx, bson.M{"urlHash": fingerprint}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return article.Article{}, store.ErrNotFound
	}
	if err != nil {
		return article.Article{}, fmt.Errorf("find urlHash %s: %w", fingerprint, err)
	}
	return fromDoc(doc), nil
}

func (b *Backend) Insert(ctx context.Context, a article.Article) (string, error) {
	coll, err := b.coll(ctx)
	if err != nil {
		return "", err
	}

	doc := articleDoc{ObjectID: primitive.NewObjectID(), Article: a}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", store.ErrDuplicate
		}
		return "", fmt.Errorf("insert article: %w", err)
	}
	return doc.ObjectID.Hex(), nil
}

func (b *Backend) Replace(ctx context.Context, id string, a article.Article) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrNotFound
	}
	coll, err := b.coll(ctx)
	if err != nil {
		return err
	}

	res, err := coll.ReplaceOne(ctx, bson.M{"_id": oid}, articleDoc{ObjectID: oid, Article: a})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("replace article: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (b *Backend) FetchByIDs(ctx context.Context, ids []string) ([]article.Article, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil, nil
	}
	return b.find(ctx, bson.M{"_id": bson.M{"$in": oids}}, nil)
}

func (b *Backend) FindRecent(ctx context.Context, q store.RecentQuery) ([]article.Article, error) {
	opts := options.Find().SetSort(newestFirst())
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return b.find(ctx, recentFilter(q), opts)
}

// FindSince evaluates the cutoff with the server clock ($$NOW).
func (b *Backend) FindSince(ctx context.Context, window time.Duration) ([]article.Article, error) {
	return b.find(ctx, sinceFilter(window), options.Find().SetSort(newestFirst()))
}

func (b *Backend) find(ctx context.Context, filter any, opts *options.FindOptions) ([]article.Article, error) {
	coll, err := b.coll(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find articles: %w", err)
	}
	var docs []articleDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}

	out := make([]article.Article, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDoc(doc))
	}
	return out, nil
}

func (b *Backend) EnsureIndexes(ctx context.Context) error {
	coll, err := b.coll(ctx)
	if err != nil {
		return err
	}

	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "urlHash", Value: 1}},
			Options: options.Index().SetName(IndexURLHashUnique).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "publishedAt", Value: -1}, {Key: "source", Value: 1}},
			Options: options.Index().SetName(IndexPublishedAtSource),
		},
		{
			Keys:    bson.D{{Key: "publishedAt", Value: -1}},
			Options: options.Index().SetName(IndexPublishedAtDesc),
		},
	})
	if err != nil {
		return fmt.Errorf("create article indexes: %w", err)
	}
	return nil
}

func (b *Backend) Status(ctx context.Context) (map[string]any, error) {
	client, err := b.client(ctx)
	if err != nil {
		return nil, err
	}
	db := client.Database(b.database)

	var info bson.M
	if err := db.RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&info); err != nil {
		return nil, fmt.Errorf("buildInfo: %w", err)
	}
	collections, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	return map[string]any{
		"database":    b.database,
		"collection":  b.collection,
		"version":     info["version"],
		"collections": collections,
	}, nil
}

func newestFirst() bson.D {
	return bson.D{{Key: "publishedAt", Value: -1}, {Key: "_id", Value: -1}}
}

func recentFilter(q store.RecentQuery) bson.M {
	filter := bson.M{}
	if q.Source != "" {
		filter["source"] = q.Source
	}
	if q.Before != nil {
		filter["publishedAt"] = bson.M{"$lt": q.Before.UTC()}
	}
	return filter
}

func sinceFilter(window time.Duration) bson.M {
	return bson.M{
		"$expr": bson.M{
			"$gte": bson.A{
				"$publishedAt",
				bson.M{"$subtract": bson.A{"$$NOW", window.Milliseconds()}},
			},
		},
	}
}

func fromDoc(doc articleDoc) article.Article {
	a := doc.Article
	a.ID = doc.ObjectID.Hex()
	for k, v := range a.Quality.Extra {
		a.Quality.Extra[k] = plainValue(v)
	}
	a.Normalize()
	return a
}

// plainValue converts driver container types into plain maps and slices so decoded
// extension values compare equal to their JSON-decoded counterparts.
func plainValue(v any) any {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = plainValue(e.Value)
		}
		return m
	case primitive.M:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = plainValue(e)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = plainValue(e)
		}
		return m
	case primitive.A:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = plainValue(e)
		}
		return s
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = plainValue(e)
		}
		return s
	default:
		return v
	}
}
