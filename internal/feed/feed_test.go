package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T) (*Writer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	w := NewWriter(func(context.Context) (redis.Cmdable, error) { return rdb, nil }, "", zerolog.Nop())
	return w, mr
}

func TestPushWritesEveryUser(t *testing.T) {
	w, mr := newTestWriter(t)

	res := w.Push(context.Background(), "a1", []string{"u1", "u2"}, 8.5)
	assert.Equal(t, []string{"u1", "u2"}, res.Succeeded)
	assert.Empty(t, res.Failed)

	for _, key := range []string{"feed:u1", "feed:u2"} {
		score, err := mr.ZScore(key, "a1")
		require.NoError(t, err)
		assert.Equal(t, 8.5, score)
	}
}

func TestRePushUpdatesScoreWithoutDuplicating(t *testing.T) {
	w, mr := newTestWriter(t)
	ctx := context.Background()

	w.Push(ctx, "a1", []string{"u1"}, 1)
	w.Push(ctx, "a1", []string{"u1"}, 4)

	members, err := mr.ZMembers("feed:u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, members)
	score, _ := mr.ZScore("feed:u1", "a1")
	assert.Equal(t, 4.0, score)
}

func TestPushEmptyAndBlankUsersIsNoop(t *testing.T) {
	w, mr := newTestWriter(t)

	res := w.Push(context.Background(), "a1", nil, 1)
	assert.Empty(t, res.Succeeded)
	assert.Empty(t, res.Failed)

	res = w.Push(context.Background(), "a1", []string{"", "  ", "u1", "u1"}, 1)
	assert.Equal(t, []string{"u1"}, res.Succeeded)
	assert.Len(t, mr.Keys(), 1)
}

func TestPushIsolatesFailingUser(t *testing.T) {
	w, mr := newTestWriter(t)
	require.NoError(t, mr.Set("feed:broken", "not a sorted set"))

	res := w.Push(context.Background(), "a1", []string{"u1", "broken", "u2"}, 2)
	assert.Equal(t, []string{"u1", "u2"}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "broken", res.Failed[0].UserID)
	assert.Contains(t, res.Failed[0].Message, "WRONGTYPE")
}

func TestPushWithUnavailableStoreFailsEveryUser(t *testing.T) {
	down := errors.New("dial tcp: connection refused")
	w := NewWriter(func(context.Context) (redis.Cmdable, error) { return nil, down }, "feed:", zerolog.Nop())

	res := w.Push(context.Background(), "a1", []string{"u1", "u2"}, 1)
	assert.Empty(t, res.Succeeded)
	require.Len(t, res.Failed, 2)
	assert.ErrorIs(t, res.Failed[0].Err, down)
}

func TestTopOrdersByScore(t *testing.T) {
	w, _ := newTestWriter(t)
	ctx := context.Background()

	w.Push(ctx, "low", []string{"u1"}, 0.5)
	w.Push(ctx, "high", []string{"u1"}, 9)
	w.Push(ctx, "mid", []string{"u1"}, 3)

	entries, err := w.Top(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{ArticleID: "high", Score: 9}, {ArticleID: "mid", Score: 3}}, entries)

	empty, err := w.Top(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = w.Top(ctx, " ", 5)
	assert.Error(t, err)
}

func TestCustomPrefixAndPing(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	w := NewWriter(func(context.Context) (redis.Cmdable, error) { return rdb, nil }, "timeline:", zerolog.Nop())

	require.NoError(t, w.Ping(context.Background()))
	w.Push(context.Background(), "a1", []string{"u9"}, 1)
	assert.True(t, mr.Exists("timeline:u9"))
}
