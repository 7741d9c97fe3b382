// Package feed maintains the per-user ranked feeds in Redis: one sorted set per user,
// article IDs as members and ranking scores as scores.
package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	DefaultKeyPrefix = "feed:"
	DefaultTopLimit  = 50
)

// ClientSource returns the Redis client to use; it may open the connection lazily.
type ClientSource func(ctx context.Context) (redis.Cmdable, error)

type UserFailure struct {
	UserID  string `json:"userId"`
	Err     error  `json:"-"`
	Message string `json:"error"`
}

// PushResult aggregates a fanout. Every attempted user lands in exactly one list.
type PushResult struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []UserFailure `json:"failed,omitempty"`
}

// Entry is one ranked feed member.
type Entry struct {
	ArticleID string  `json:"articleId"`
	Score     float64 `json:"score"`
}

type Writer struct {
	client ClientSource
	prefix string
	logger zerolog.Logger
}

func NewWriter(client ClientSource, prefix string, logger zerolog.Logger) *Writer {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Writer{client: client, prefix: prefix, logger: logger}
}

// Key returns the sorted set holding userID's feed.
func (w *Writer) Key(userID string) string {
	return w.prefix + userID
}

// Push adds articleID to each user's feed with score. Re-pushing an article only moves its
// score. Users are written independently; one failing user does not affect the others.
func (w *Writer) Push(ctx context.Context, articleID string, userIDs []string, score float64) PushResult {
	result := PushResult{Succeeded: []string{}}
	users := uniqueUsers(userIDs)
	if len(users) == 0 {
		return result
	}

	rdb, err := w.client(ctx)
	if err != nil {
		w.logger.Error().Err(err).Str("article_id", articleID).Int("users", len(users)).Msg("feed store unavailable")
		for _, userID := range users {
			result.Failed = append(result.Failed, newUserFailure(userID, err))
		}
		return result
	}

	pipe := rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(users))
	for i, userID := range users {
		cmds[i] = pipe.ZAdd(ctx, w.Key(userID), redis.Z{Score: score, Member: articleID})
	}
	// Exec reports only the first failure; each command carries its own.
	_, _ = pipe.Exec(ctx)

	for i, userID := range users {
		if err := cmds[i].Err(); err != nil {
			w.logger.Error().Err(err).Str("article_id", articleID).Str("user_id", userID).Msg("feed push failed")
			result.Failed = append(result.Failed, newUserFailure(userID, err))
			continue
		}
		result.Succeeded = append(result.Succeeded, userID)
	}

	w.logger.Debug().
		Str("article_id", articleID).
		Float64("score", score).
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Msg("pushed article to feeds")
	return result
}

// Top returns up to limit entries of userID's feed, highest score first.
func (w *Writer) Top(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	rdb, err := w.client(ctx)
	if err != nil {
		return nil, err
	}
	members, err := rdb.ZRevRangeWithScores(ctx, w.Key(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", userID, err)
	}

	entries := make([]Entry, 0, len(members))
	for _, z := range members {
		member, ok := z.Member.(string)
		if !ok {
			member = fmt.Sprint(z.Member)
		}
		entries = append(entries, Entry{ArticleID: member, Score: z.Score})
	}
	return entries, nil
}

func (w *Writer) Ping(ctx context.Context) error {
	rdb, err := w.client(ctx)
	if err != nil {
		return err
	}
	return rdb.Ping(ctx).Err()
}

func uniqueUsers(userIDs []string) []string {
	seen := make(map[string]struct{}, len(userIDs))
	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func newUserFailure(userID string, err error) UserFailure {
	return UserFailure{UserID: userID, Err: err, Message: err.Error()}
}
