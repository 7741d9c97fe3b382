package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "init-indexes":
		return runInitIndexes(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "feed":
		return runFeed(args[1:])
	case "watch":
		return runWatch(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "feedcore CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  feedcore <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health        Check article store and feed store connectivity")
	fmt.Fprintln(os.Stderr, "  init-indexes  Create the article store indexes")
	fmt.Fprintln(os.Stderr, "  ingest        Upsert articles from a JSON payload and fan them out")
	fmt.Fprintln(os.Stderr, "  feed          Print a user's ranked feed")
	fmt.Fprintln(os.Stderr, "  watch         Save a user's ticker watchlist (MATCHER=watchlist)")
	fmt.Fprintln(os.Stderr, "  serve         Start Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"feedcore <command> -h\" for command-specific flags.")
}
