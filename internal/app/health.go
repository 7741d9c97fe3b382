package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/feedcore/internal/cli"
	"horse.fit/feedcore/internal/store"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env")
	timeout := fs.Duration("timeout", 10*time.Second, "Health check timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
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

	status := rt.store.TestConnection(ctx)
	feedErr := rt.feeds.Ping(ctx)

	report := map[string]any{"store": status, "feed": map[string]any{"status": store.StatusConnected}}
	if feedErr != nil {
		report["feed"] = map[string]any{"status": store.StatusFailed, "error": feedErr.Error()}
	}
	if err := printJSON(report); err != nil {
		return 1
	}

	if status.Status != store.StatusConnected || feedErr != nil {
		logger.Error().Str("store", status.Status).AnErr("feed", feedErr).Msg("health check failed")
		return 1
	}
	return 0
}
