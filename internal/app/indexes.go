package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/feedcore/internal/cli"
)

func runInitIndexes(args []string) int {
	fs := flag.NewFlagSet("init-indexes", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

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

	if err := rt.store.InitIndexes(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Index initialization failed: %v\n", err)
		return 1
	}
	fmt.Printf("indexes initialized backend=%s\n", rt.store.Backend().Name())
	return 0
}
