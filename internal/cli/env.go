package cli

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// OverrideEnvVar names a variable that points at an .env file and wins over --env.
const OverrideEnvVar = "FEEDCORE_ENV_FILE"

// ErrNoEnvFile is returned when neither the override nor the requested file exists.
var ErrNoEnvFile = errors.New("no env file found")

// EnvLoader loads .env files before configuration is read from the environment.
type EnvLoader struct {
	value       *string
	defaultPath string
}

// AddEnvFlag registers an --env flag and returns an EnvLoader bound to it.
func AddEnvFlag(fs *flag.FlagSet, defaultPath string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	return &EnvLoader{
		value:       fs.String("env", defaultPath, "Path to the .env file"),
		defaultPath: defaultPath,
	}
}

// Load applies the first env file that exists, in order: $FEEDCORE_ENV_FILE, --env, default.
// Values already present in the process environment are not overwritten.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}

	candidates := make([]string, 0, 3)
	if custom := strings.TrimSpace(os.Getenv(OverrideEnvVar)); custom != "" {
		candidates = append(candidates, custom)
	}
	if l.value != nil {
		if requested := strings.TrimSpace(*l.value); requested != "" {
			candidates = append(candidates, requested)
		}
	}
	candidates = append(candidates, l.defaultPath)

	seen := make(map[string]struct{}, len(candidates))
	for _, path := range candidates {
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}

		err := godotenv.Load(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("%w (tried %s)", ErrNoEnvFile, strings.Join(candidates, ", "))
}
