package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	MatcherNone      = "none"
	MatcherWatchlist = "watchlist"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	ArticleBackend string `envconfig:"ARTICLE_BACKEND" default:"mongo"`

	MongoURI           string        `envconfig:"MONGO_URI"`
	MongoDB            string        `envconfig:"MONGO_DB" default:"feedcore"`
	ArticlesCollection string        `envconfig:"ARTICLES_COLLECTION" default:"articles"`
	UsersCollection    string        `envconfig:"USERS_COLLECTION" default:"users"`
	MongoTimeout       time.Duration `envconfig:"MONGO_TIMEOUT" default:"10s"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMinConns  int32  `envconfig:"FC_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"FC_DB_MAX_CONNS" default:"8"`

	RedisURL      string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	FeedKeyPrefix string `envconfig:"FEED_KEY_PREFIX" default:"feed:"`

	Matcher string `envconfig:"MATCHER" default:"none"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.ArticleBackend = strings.ToLower(strings.TrimSpace(cfg.ArticleBackend))
	cfg.Matcher = strings.ToLower(strings.TrimSpace(cfg.Matcher))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.ArticleBackend {
	case BackendMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			return fmt.Errorf("MONGO_URI is required when ARTICLE_BACKEND=mongo")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when ARTICLE_BACKEND=postgres")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("ARTICLE_BACKEND must be one of mongo, postgres, memory (got %q)", c.ArticleBackend)
	}

	if c.UsesMongo() {
		if strings.TrimSpace(c.MongoDB) == "" {
			return fmt.Errorf("MONGO_DB is required")
		}
		if strings.TrimSpace(c.ArticlesCollection) == "" {
			return fmt.Errorf("ARTICLES_COLLECTION is required")
		}
		if c.MongoTimeout <= 0 {
			return fmt.Errorf("MONGO_TIMEOUT must be > 0")
		}
	}

	switch c.Matcher {
	case MatcherNone:
	case MatcherWatchlist:
		if strings.TrimSpace(c.MongoURI) == "" {
			return fmt.Errorf("MONGO_URI is required when MATCHER=watchlist")
		}
		if strings.TrimSpace(c.UsersCollection) == "" {
			return fmt.Errorf("USERS_COLLECTION is required when MATCHER=watchlist")
		}
	default:
		return fmt.Errorf("MATCHER must be one of none, watchlist (got %q)", c.Matcher)
	}

	if c.DBMinConns < 0 {
		return fmt.Errorf("FC_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("FC_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("FC_DB_MIN_CONNS (%d) cannot exceed FC_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if strings.TrimSpace(c.FeedKeyPrefix) == "" {
		return fmt.Errorf("FEED_KEY_PREFIX is required")
	}
	return nil
}

// UsesMongo reports whether any configured component talks to MongoDB.
func (c *Config) UsesMongo() bool {
	if c == nil {
		return false
	}
	return c.ArticleBackend == BackendMongo || c.Matcher == MatcherWatchlist
}
