package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/feedcore/internal/cli"
	"horse.fit/feedcore/internal/feed"
)

func runFeed(args []string) int {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")
	userID := fs.String("user", "", "User ID whose feed to print")
	limit := fs.Int("limit", feed.DefaultTopLimit, "Maximum number of entries")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*userID) == "" {
		fmt.Fprintln(os.Stderr, "--user is required")
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}

	cfg, logger, code := bootstrap(envLoader)
	if code != 0 {
		return code
	}
	rt, err := newComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		return 1
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	entries, err := rt.feeds.Top(ctx, strings.TrimSpace(*userID), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read feed: %v\n", err)
		return 1
	}
	for _, e := range entries {
		fmt.Printf("%s\t%.6g\n", e.ArticleID, e.Score)
	}
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")
	userID := fs.String("user", "", "User ID")
	tickers := fs.String("tickers", "", "Comma-separated ticker symbols")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*userID) == "" {
		fmt.Fprintln(os.Stderr, "--user is required")
		return 2
	}

	cfg, logger, code := bootstrap(envLoader)
	if code != 0 {
		return code
	}
	rt, err := newComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		return 1
	}
	defer rt.Close()

	if rt.watchlist == nil {
		fmt.Fprintln(os.Stderr, "watch requires MATCHER=watchlist")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := rt.watchlist.AddUser(ctx, strings.TrimSpace(*userID), strings.Split(*tickers, ",")); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save watchlist: %v\n", err)
		return 1
	}
	fmt.Printf("watchlist saved user=%s\n", strings.TrimSpace(*userID))
	return 0
}
