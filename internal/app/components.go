package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"horse.fit/feedcore/internal/cli"
	"horse.fit/feedcore/internal/config"
	"horse.fit/feedcore/internal/conn"
	"horse.fit/feedcore/internal/feed"
	"horse.fit/feedcore/internal/logging"
	"horse.fit/feedcore/internal/matcher"
	"horse.fit/feedcore/internal/pipeline"
	"horse.fit/feedcore/internal/store"
	"horse.fit/feedcore/internal/store/memstore"
	"horse.fit/feedcore/internal/store/mongostore"
	"horse.fit/feedcore/internal/store/pgstore"
)

// components is the wired component graph shared by every command.
type components struct {
	cfg       *config.Config
	logger    zerolog.Logger
	clients   *conn.Clients
	store     *store.Store
	feeds     *feed.Writer
	matcher   matcher.Matcher
	watchlist *matcher.Watchlist
	pipeline  *pipeline.Service
}

// bootstrap loads env files, configuration and the logger. A non-zero code means the
// command should exit with it.
func bootstrap(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, int) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil && !errors.Is(err, cli.ErrNoEnvFile) {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, zerolog.Nop(), 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return nil, zerolog.Nop(), 1
	}
	return cfg, logger, 0
}

// newComponents wires the configured backend, matcher and feed writer. Nothing connects
// until first use.
func newComponents(cfg *config.Config, logger zerolog.Logger) (*components, error) {
	rt := &components{
		cfg:     cfg,
		logger:  logger,
		clients: conn.Default(cfg, logger),
	}

	var backend store.Backend
	switch cfg.ArticleBackend {
	case config.BackendMongo:
		backend = mongostore.New(rt.clients.MongoClient, cfg.MongoDB, cfg.ArticlesCollection)
	case config.BackendPostgres:
		backend = pgstore.New(rt.clients.PostgresPool)
	case config.BackendMemory:
		backend = memstore.New()
	default:
		return nil, fmt.Errorf("unsupported article backend %q", cfg.ArticleBackend)
	}

	var opts []store.Option
	switch cfg.Matcher {
	case config.MatcherWatchlist:
		rt.watchlist = matcher.NewWatchlist(rt.clients.MongoClient, cfg.MongoDB, cfg.UsersCollection, logger)
		rt.matcher = rt.watchlist
		opts = append(opts, store.WithOptionalIndex(rt.watchlist.OptionalIndex()))
	default:
		rt.matcher = matcher.None{}
	}

	rt.store = store.New(backend, logger, opts...)
	rt.feeds = feed.NewWriter(rt.clients.RedisClient, cfg.FeedKeyPrefix, logger)
	rt.pipeline = pipeline.New(rt.store, rt.matcher, rt.feeds, logger)
	return rt, nil
}

func (rt *components) Close() {
	if err := conn.ResetDefault(context.Background()); err != nil {
		rt.logger.Warn().Err(err).Msg("closing store clients failed")
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
