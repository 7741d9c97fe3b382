package matcher

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"horse.fit/feedcore/internal/article"
	"horse.fit/feedcore/internal/globaltime"
	"horse.fit/feedcore/internal/store"
)

const IndexWatchlistTickers = "watchlist_tickers"

type ClientFunc func(ctx context.Context) (*mongo.Client, error)

// Watchlist matches users whose stored watchlist shares a ticker with the article.
// User documents look like {_id: "u1", watchlist: {tickers: ["AAPL"]}, createdAt: ...}.
type Watchlist struct {
	client     ClientFunc
	database   string
	collection string
	logger     zerolog.Logger
}

func NewWatchlist(client ClientFunc, database, collection string, logger zerolog.Logger) *Watchlist {
	return &Watchlist{
		client:     client,
		database:   database,
		collection: collection,
		logger:     logger.With().Str("component", "watchlist_matcher").Logger(),
	}
}

func (w *Watchlist) coll(ctx context.Context) (*mongo.Collection, error) {
	client, err := w.client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(w.database).Collection(w.collection), nil
}

func (w *Watchlist) Match(ctx context.Context, entities article.Entities) ([]string, error) {
	tickers := normalizeTickers(entities.Tickers)
	if len(tickers) == 0 {
		return []string{}, nil
	}

	coll, err := w.coll(ctx)
	if err != nil {
		return []string{}, err
	}

	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := coll.Find(ctx, bson.M{"watchlist.tickers": bson.M{"$in": tickers}}, opts)
	if err != nil {
		return []string{}, fmt.Errorf("match watchlists: %w", err)
	}

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return []string{}, fmt.Errorf("decode watchlist matches: %w", err)
	}

	users := make([]string, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.ID)
	}
	w.logger.Debug().Strs("tickers", tickers).Int("users", len(users)).Msg("matched watchlists")
	return users, nil
}

// AddUser creates or replaces a user's watchlist. createdAt is set only on creation.
func (w *Watchlist) AddUser(ctx context.Context, userID string, tickers []string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	coll, err := w.coll(ctx)
	if err != nil {
		return err
	}

	_, err = coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$set":         bson.M{"watchlist.tickers": normalizeTickers(tickers)},
			"$setOnInsert": bson.M{"createdAt": globaltime.StoreUTC()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", userID, err)
	}
	w.logger.Info().Str("user_id", userID).Msg("saved watchlist")
	return nil
}

func (w *Watchlist) EnsureIndex(ctx context.Context) error {
	coll, err := w.coll(ctx)
	if err != nil {
		return err
	}
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "watchlist.tickers", Value: 1}},
		Options: options.Index().SetName(IndexWatchlistTickers),
	})
	return err
}

// OptionalIndex registers the users index with a store's best-effort index pass.
func (w *Watchlist) OptionalIndex() store.OptionalIndex {
	return store.OptionalIndex{Name: IndexWatchlistTickers, Ensure: w.EnsureIndex}
}
