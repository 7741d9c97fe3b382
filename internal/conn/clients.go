package conn

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"horse.fit/feedcore/internal/config"
	"horse.fit/feedcore/internal/db"
)

// Clients holds one lazy handle per backing store.
type Clients struct {
	Mongo    *Lazy[*mongo.Client]
	Redis    *Lazy[*redis.Client]
	Postgres *Lazy[*db.Pool]
}

func NewClients(cfg *config.Config, logger zerolog.Logger) *Clients {
	return &Clients{
		Mongo: NewLazy("mongodb", func(ctx context.Context) (*mongo.Client, error) {
			return openMongo(ctx, cfg, logger)
		}, func(ctx context.Context, c *mongo.Client) error {
			return c.Disconnect(ctx)
		}),
		Redis: NewLazy("redis", func(ctx context.Context) (*redis.Client, error) {
			return openRedis(ctx, cfg, logger)
		}, func(_ context.Context, c *redis.Client) error {
			return c.Close()
		}),
		Postgres: NewLazy("postgres", func(ctx context.Context) (*db.Pool, error) {
			pool, err := db.NewPool(ctx, cfg)
			if err != nil {
				logger.Error().Err(err).Msg("failed to connect to postgres")
				return nil, err
			}
			logger.Info().Msg("postgres connection established")
			return pool, nil
		}, func(_ context.Context, p *db.Pool) error {
			return p.Close()
		}),
	}
}

// MongoClient adapts the lazy handle to the accessor shape the store packages take.
func (c *Clients) MongoClient(ctx context.Context) (*mongo.Client, error) {
	return c.Mongo.Get(ctx)
}

func (c *Clients) RedisClient(ctx context.Context) (redis.Cmdable, error) {
	client, err := c.Redis.Get(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Clients) PostgresPool(ctx context.Context) (*db.Pool, error) {
	return c.Postgres.Get(ctx)
}

// Close releases every opened client.
func (c *Clients) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return errors.Join(
		c.Mongo.Close(ctx),
		c.Redis.Close(ctx),
		c.Postgres.Close(ctx),
	)
}

var (
	defaultMu      sync.Mutex
	defaultClients *Clients
)

// Default returns the process-wide client set, building it from cfg on first call.
// Later calls return the same set regardless of cfg.
func Default(cfg *config.Config, logger zerolog.Logger) *Clients {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultClients == nil {
		defaultClients = NewClients(cfg, logger)
	}
	return defaultClients
}

// ResetDefault closes and forgets the process-wide client set.
func ResetDefault(ctx context.Context) error {
	defaultMu.Lock()
	current := defaultClients
	defaultClients = nil
	defaultMu.Unlock()

	return current.Close(ctx)
}

func openMongo(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetServerSelectionTimeout(cfg.MongoTimeout).
		SetConnectTimeout(cfg.MongoTimeout).
		SetTimeout(cfg.MongoTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to mongodb")
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.MongoTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		logger.Error().Err(err).Msg("failed to connect to mongodb")
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	logger.Info().Str("database", cfg.MongoDB).Msg("mongodb connection established")
	return client, nil
}

func openRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Error().Err(err).Msg("failed to connect to redis")
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info().Str("addr", opts.Addr).Msg("redis connection established")
	return client, nil
}
